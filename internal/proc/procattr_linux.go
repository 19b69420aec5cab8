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

//go:build linux

package proc

import (
	"syscall"

	"golang.org/x/sys/unix"

	drovererrors "github.com/drover-sh/drover/pkg/errors"
)

// sysProcAttr arranges for workers to receive SIGTERM if the supervisor
// dies without cleaning up. It is the next best thing to reparenting
// orphaned workers.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}

// EnableSubreaper marks the supervisor as the child subreaper so workers
// that double-fork still reparent to it instead of init.
func EnableSubreaper() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return drovererrors.Wrap(err, "set child subreaper")
	}
	return nil
}
