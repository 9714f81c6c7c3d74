package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireWritesOwnPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dubedit.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer pf.Release()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("invalid pid in file: %q", data)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dubedit.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer pf.Release()

	_, err = Acquire(pidPath)
	if err == nil {
		t.Fatal("expected second Acquire to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("err = %v", err)
	}
}

func TestStaleFileReplaced(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dubedit.pid")

	// A pid that cannot be a live process.
	if err := os.WriteFile(pidPath, []byte("99999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire over stale file: %v", err)
	}
	defer pf.Release()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("pid file = %q, want own pid", got)
	}
}

func TestRelease(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dubedit.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := pf.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("pid file still exists after release")
	}
}

func TestReleaseKeepsForeignPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dubedit.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatal(err)
	}

	// Someone else took over the file.
	foreign := strconv.Itoa(os.Getpid() + 1)
	if err := os.WriteFile(pidPath, []byte(foreign+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf.Release()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatal("pid file was removed despite foreign pid")
	}
	if got := strings.TrimSpace(string(data)); got != foreign {
		t.Errorf("pid file = %q, want %q", got, foreign)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if processAlive(99999) {
		t.Error("pid 99999 should not be alive")
	}
}
