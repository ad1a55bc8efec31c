package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// Lock is a single-instance advisory PID-file lock.
type Lock struct {
	path string
}

// Acquire writes the current PID to path, refusing if an existing PID in
// that file is still alive. A stale PID (no such process) is treated as
// absent and overwritten.
func Acquire(path string) (*Lock, error) {
	if existing, ok := readLivePID(path); ok {
		return nil, perr.New("orchestrator", perr.InvalidState, fmt.Sprintf("orchestrator already running as pid %d", existing))
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return nil, perr.Wrap("orchestrator", perr.FileWriteError, "failed to write pid file", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the PID file. Safe to call on a clean shutdown only; a
// crash leaves the file behind for the next Acquire's liveness check to
// clean up.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return perr.Wrap("orchestrator", perr.FileWriteError, "failed to remove pid file", err)
	}
	return nil
}

// readLivePID reads path and reports the PID it names if that process is
// still alive.
func readLivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// processAlive probes liveness with signal 0, which delivers no signal but
// still fails with ESRCH if the process doesn't exist.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// ReadPID reads the PID recorded at path without checking liveness, for
// `--status`/`--stop` callers that want to report or signal a process
// that might belong to a prior orchestrator invocation.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, perr.Wrap("orchestrator", perr.FileNotFound, "no pid file at "+path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, perr.Wrap("orchestrator", perr.CorruptedFile, "pid file does not contain a decimal pid", err)
	}
	return pid, nil
}
