// Copyright 2026 The Drover Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ctl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandInfo describes one droverctl command for machine consumption.
type CommandInfo struct {
	Name        string     `json:"name"`
	Short       string     `json:"short"`
	Long        string     `json:"long,omitempty"`
	Usage       string     `json:"usage"`
	Flags       []FlagInfo `json:"flags,omitempty"`
	Examples    string     `json:"examples,omitempty"`
	Subcommands []string   `json:"subcommands,omitempty"`
	Aliases     []string   `json:"aliases,omitempty"`
}

// FlagInfo describes one flag of a command.
type FlagInfo struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// HelpResponse is the payload of `droverctl help --json`. Either Commands
// or Command is set, never both.
type HelpResponse struct {
	Commands    []CommandInfo `json:"commands,omitempty"`
	Command     *CommandInfo  `json:"command,omitempty"`
	GlobalFlags []FlagInfo    `json:"global_flags"`
}

// newHelpCommand builds the help command. It replaces Cobra's default so
// that --json can emit command and flag metadata for scripts instead of
// rendered help text; install it with rootCmd.SetHelpCommand.
func newHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help shows usage for droverctl and its commands.

With --json it emits command and flag metadata as JSON so scripts and
tooling can discover the CLI surface without parsing help text.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if jsonFlag {
					return writeAllCommandsJSON(cmd, rootCmd)
				}
				return rootCmd.Help()
			}

			target, _, err := rootCmd.Find(args)
			if err != nil {
				return fmt.Errorf("command %q not found", args[0])
			}

			if jsonFlag {
				return writeCommandJSON(cmd, target, rootCmd)
			}
			return target.Help()
		},
	}
}

func writeAllCommandsJSON(cmd, rootCmd *cobra.Command) error {
	var commands []CommandInfo
	for _, c := range rootCmd.Commands() {
		if c.Hidden {
			continue
		}
		commands = append(commands, commandInfo(c))
	}

	return writeHelpJSON(cmd, HelpResponse{
		Commands:    commands,
		GlobalFlags: flagInfos(rootCmd.PersistentFlags()),
	})
}

func writeCommandJSON(cmd, target, rootCmd *cobra.Command) error {
	info := commandInfo(target)
	return writeHelpJSON(cmd, HelpResponse{
		Command:     &info,
		GlobalFlags: flagInfos(rootCmd.PersistentFlags()),
	})
}

func writeHelpJSON(cmd *cobra.Command, resp HelpResponse) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// commandInfo extracts the metadata of one command.
func commandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Flags:    flagInfos(cmd.Flags()),
	}

	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, sub.Name())
		}
	}

	return info
}

// flagInfos walks a flag set into its JSON form, skipping hidden flags.
func flagInfos(fs *pflag.FlagSet) []FlagInfo {
	var flags []FlagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		flags = append(flags, FlagInfo{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return flags
}
