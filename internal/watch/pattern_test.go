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

import "testing"

func TestMatcher_IncludeEverythingByDefault(t *testing.T) {
	m, err := newMatcher(nil, nil)
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	for _, path := range []string{"/app/main.py", "/app/static/style.css", "config.yaml"} {
		if !m.Match(path) {
			t.Errorf("Match(%q) = false, want true", path)
		}
	}
}

func TestMatcher_Include(t *testing.T) {
	m, err := newMatcher([]string{"**/*.py"}, nil)
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/app/main.py", true},
		{"/app/pkg/util.py", true},
		{"main.py", true},
		{"/app/static/style.css", false},
		{"/app/README.md", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatcher_BaseNamePatterns(t *testing.T) {
	// Patterns without a "**/" prefix still match by base name.
	m, err := newMatcher([]string{"*.py"}, nil)
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	if !m.Match("/deep/nested/dir/main.py") {
		t.Error("expected *.py to match a nested .py file by base name")
	}
	if m.Match("/deep/nested/dir/main.go") {
		t.Error("expected *.py not to match a .go file")
	}
}

func TestMatcher_Exclude(t *testing.T) {
	m, err := newMatcher([]string{"**/*"}, []string{"**/.git/**", "**/*.swp"})
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/app/main.py", true},
		{"/app/.git/HEAD", false},
		{"/app/.main.py.swp", false},
		{"/app/sub/file.swp", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatcher_ExcludeWinsOverInclude(t *testing.T) {
	m, err := newMatcher([]string{"**/*.py"}, []string{"**/generated/**"})
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	if m.Match("/app/generated/models.py") {
		t.Error("expected exclude to win over include")
	}
	if !m.Match("/app/src/models.py") {
		t.Error("expected non-excluded .py file to match")
	}
}

func TestMatcher_ExcludedDir(t *testing.T) {
	m, err := newMatcher([]string{"**/*.py"}, []string{"**/.git/**", "**/node_modules/**"})
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}

	if !m.excludedDir("/app/.git") {
		t.Error("expected .git to be excluded from the walk")
	}
	if !m.excludedDir("/app/web/node_modules") {
		t.Error("expected node_modules to be excluded from the walk")
	}
	// Directories never match file-shaped include patterns, but must
	// still be walked.
	if m.excludedDir("/app/src") {
		t.Error("expected src to be walked")
	}
}

func TestNewMatcher_InvalidPattern(t *testing.T) {
	if _, err := newMatcher([]string{"[unclosed"}, nil); err == nil {
		t.Error("expected an error for an invalid include pattern")
	}
	if _, err := newMatcher(nil, []string{"[unclosed"}); err == nil {
		t.Error("expected an error for an invalid exclude pattern")
	}
}
