package orchestrator

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.pid")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire after Release: %v", err)
	}
	_ = l2.Release()
}

func TestAcquireRefusesWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.pid")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("expected second Acquire to fail while the first is live")
	}
}

func TestAcquireTreatsStalePIDAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.pid")
	// A PID essentially guaranteed not to be alive.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over stale pid file: %v", err)
	}
	_ = l.Release()
}

func TestReadPIDReturnsStoredValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.pid")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, want %d", pid, os.Getpid())
	}
}
