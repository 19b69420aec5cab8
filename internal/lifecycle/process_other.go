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

//go:build !linux

package lifecycle

// isDroverProcess cannot inspect the command line without procfs. A live
// process is assumed to be the PID file's owner, which errs toward
// refusing to start rather than stealing a live supervisor's PID file.
func isDroverProcess(pid int) bool {
	return true
}
