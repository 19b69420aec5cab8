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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrAlreadyRunning is returned when the PID file belongs to a live
	// supervisor.
	ErrAlreadyRunning = errors.New("another supervisor is already running")

	// ErrPIDFileLocked is returned when another process holds the PID file
	// lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is
	// world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")
)

// PIDFile manages the supervisor's PID file. Creation is atomic (O_EXCL)
// and the file is held under an exclusive flock for the life of the
// process, so a stale file left by a crash is distinguishable from a live
// supervisor's.
type PIDFile struct {
	path     string
	lockFile *os.File
}

// NewPIDFile creates a PID file manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes pid to the file. If the file exists but its owner is
// gone (or is not a drover process, after PID reuse), the stale file is
// removed and acquisition retried once. A live owner yields
// ErrAlreadyRunning.
func (p *PIDFile) Acquire(pid int) error {
	err := p.create(pid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) && !errors.Is(err, ErrPIDFileLocked) {
		return err
	}

	owner, readErr := p.Read()
	if readErr == nil && IsProcessRunning(owner) && isDroverProcess(owner) {
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, owner, p.path)
	}

	// Stale file: the recorded process is gone or the PID was reused by
	// something else.
	if removeErr := os.Remove(p.path); removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("failed to remove stale PID file: %w", removeErr)
	}
	return p.create(pid)
}

// create writes the PID with exclusive creation and locking.
func (p *PIDFile) create(pid int) error {
	parentDir := filepath.Dir(p.path)
	if err := verifyDirectorySafety(parentDir); err != nil {
		return fmt.Errorf("unsafe PID file location: %w", err)
	}
	if err := os.MkdirAll(parentDir, 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// O_EXCL prevents symlink attacks and create races; O_RDWR is needed
	// for flock.
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", os.ErrExist, p.path)
		}
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(p.path)
		if err == syscall.EWOULDBLOCK {
			return ErrPIDFileLocked
		}
		return fmt.Errorf("failed to lock PID file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		f.Close()
		os.Remove(p.path)
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(p.path)
		return fmt.Errorf("failed to sync PID file: %w", err)
	}

	// The file stays open to keep the lock.
	p.lockFile = f
	return nil
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// Release deletes the PID file and drops the lock.
func (p *PIDFile) Release() error {
	if p.lockFile != nil {
		syscall.Flock(int(p.lockFile.Fd()), syscall.LOCK_UN)
		p.lockFile.Close()
		p.lockFile = nil
	}

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Exists returns true if the PID file exists.
func (p *PIDFile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// verifyDirectorySafety rejects world-writable parent directories, where
// anyone could plant a symlink at the PID file path.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		// Not existing yet is fine; it is created 0700.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if info.Mode()&0002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, info.Mode()&os.ModePerm)
	}
	return nil
}
