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

package watch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// matcher filters changed paths through doublestar include and exclude
// patterns. A path passes when it matches at least one include pattern
// (an empty include list admits everything) and no exclude pattern.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(include, exclude []string) (*matcher, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &matcher{include: include, exclude: exclude}, nil
}

// Match reports whether a changed path should trigger a reload.
func (m *matcher) Match(path string) bool {
	if len(m.include) > 0 && !matchAny(m.include, path) {
		return false
	}
	return !matchAny(m.exclude, path)
}

// excludedDir reports whether a directory should not be descended into.
// Only exclude patterns apply here: include patterns describe files, so
// a directory failing them must still be walked.
func (m *matcher) excludedDir(path string) bool {
	return matchAny(m.exclude, path)
}

// matchAny tries each pattern against the full path and against the base
// name, so "*.py" works without a "**/" prefix.
func matchAny(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
