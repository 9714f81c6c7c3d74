// Package pidfile guards against duplicate console instances. Two daemons
// would fight over the audio device and the bridge port, so the second one
// must refuse to start.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is an acquired single-instance lock.
type PIDFile struct {
	path string
	pid  int
}

// Acquire writes the current PID to path. It fails when another live process
// holds the file; a stale file from a dead process is replaced.
func Acquire(path string) (*PIDFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if existing, err := strconv.Atoi(pidStr); err == nil {
			if processAlive(existing) {
				return nil, fmt.Errorf("another instance is already running (PID %d)", existing)
			}
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("remove stale pid file: %w", err)
			}
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Release deletes the file, but only if it still carries our own PID.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if data, err := os.ReadFile(p.path); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pid == p.pid {
			return os.Remove(p.path)
		}
	}
	return nil
}

// processAlive reports whether a process with the given PID exists. Signal 0
// probes without delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; the probe is the real check.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	if err == syscall.EPERM {
		// Exists, owned by someone else.
		return true
	}
	return false
}

// DefaultPath returns the conventional pid file location for the console.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "dubedit", "dubedit.pid")
}
