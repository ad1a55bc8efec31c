// Package orchestrator spawns the loader/converter/dsp/sink stage chain,
// wires an OS pipe between each adjacent pair, and owns their lifecycle:
// health polling, pause/resume/stop control, and a single-instance PID lock.
package orchestrator

import (
	"bytes"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// StageKind names one position in the loader -> converter -> [dsp] -> sink
// chain.
type StageKind string

const (
	StageLoader    StageKind = "loader"
	StageConverter StageKind = "converter"
	StageDSP       StageKind = "dsp"
	StageSink      StageKind = "sink"
)

// ProcessState mirrors the PipelineProcess lifecycle of one managed child.
type ProcessState int

const (
	Spawned ProcessState = iota
	Running
	Paused
	Exited
)

// Stage is one spawned child in the pipeline.
type Stage struct {
	Kind StageKind
	cmd  *exec.Cmd

	mu              sync.Mutex
	state           ProcessState
	exitCode        int
	stderr          bytes.Buffer
	intentionalStop bool // set by terminateGracefulWithin before signalling

	exited chan struct{}
}

// State returns the stage's current lifecycle state.
func (s *Stage) State() ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitCode returns the exit code once Exited; 0 before that.
func (s *Stage) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// StageSpec describes one stage's command line.
type StageSpec struct {
	Kind StageKind
	Path string
	Args []string
}

// Pipeline holds every spawned stage of one playback session, in order.
type Pipeline struct {
	Stages []*Stage
}

// Spawn starts each spec in order, connecting stage[i]'s stdout to
// stage[i+1]'s stdin via an OS pipe (not io.Pipe: these are separate
// processes, so the pipe's read/write ends must be real *os.File handles
// inherited across exec, the way audio/ffmpegbase.go wires ffmpeg's stdout
// into its own process via io.Pipe but generalized to process-to-process).
// Each child inherits one end and the orchestrator closes its own copy of
// both ends immediately after spawning the next stage, retaining none.
func Spawn(specs []StageSpec) (*Pipeline, error) {
	if len(specs) == 0 {
		return nil, perr.New("orchestrator", perr.InvalidArgument, "no stages to spawn")
	}

	p := &Pipeline{}
	var upstreamRead *os.File

	for i, spec := range specs {
		cmd := exec.Command(spec.Path, spec.Args...)
		cmd.Stderr = nil

		stage := &Stage{Kind: spec.Kind, cmd: cmd, state: Spawned, exited: make(chan struct{})}
		cmd.Stderr = &stage.stderr

		if upstreamRead != nil {
			cmd.Stdin = upstreamRead
		}

		var downstreamWrite *os.File
		if i < len(specs)-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				p.terminateAll()
				return nil, perr.Wrap("orchestrator", perr.AudioBackendError, "failed to create stage pipe", err)
			}
			cmd.Stdout = pw
			downstreamWrite = pw
			upstreamRead = pr
		} else {
			cmd.Stdout = os.Stdout
		}

		if err := cmd.Start(); err != nil {
			p.terminateAll()
			return nil, perr.Wrap("orchestrator", perr.AudioBackendError, "failed to start stage "+string(spec.Kind), err)
		}

		// The parent's copies of both pipe ends must close once the child
		// has inherited them, or the pipe never sees EOF.
		if i > 0 {
			prevRead := cmd.Stdin.(*os.File)
			_ = prevRead.Close()
		}
		if downstreamWrite != nil {
			_ = downstreamWrite.Close()
		}

		stage.state = Running
		go stage.wait()
		p.Stages = append(p.Stages, stage)
	}

	return p, nil
}

func (s *Stage) wait() {
	err := s.cmd.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Exited
	if exitErr, ok := err.(*exec.ExitError); ok {
		s.exitCode = exitErr.ExitCode()
	} else if err != nil {
		s.exitCode = 1
	}
	close(s.exited)
}

// terminateAll is used to unwind a partially-spawned pipeline on error.
func (p *Pipeline) terminateAll() {
	for _, s := range p.Stages {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	}
}

// Suspend sends the platform suspension signal to one stage (used by
// `pause`, directed at the sink only per the orchestrator's control
// semantics): SIGSTOP on POSIX.
func (s *Stage) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return perr.New("orchestrator", perr.InvalidState, "Suspend requires Running state")
	}
	if err := s.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return perr.Wrap("orchestrator", perr.AudioBackendError, "failed to suspend stage "+string(s.Kind), err)
	}
	s.state = Paused
	return nil
}

// Continue sends the platform resume signal (SIGCONT) to a suspended stage.
func (s *Stage) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return perr.New("orchestrator", perr.InvalidState, "Continue requires Paused state")
	}
	if err := s.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return perr.Wrap("orchestrator", perr.AudioBackendError, "failed to resume stage "+string(s.Kind), err)
	}
	s.state = Running
	return nil
}

// terminateGracefulWithin signals SIGTERM immediately and SIGKILL once
// gracePeriodElapsed fires, unless the stage exits first. intentionalStop is
// set before either signal goes out, so monitorHealth can tell an
// orchestrator-initiated stop from a genuine crash regardless of which
// signal (or neither, if the stage already exited) actually landed.
func (s *Stage) terminateGracefulWithin(gracePeriodElapsed <-chan struct{}) {
	s.mu.Lock()
	proc := s.cmd.Process
	s.intentionalStop = true
	s.mu.Unlock()
	if proc == nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-s.exited:
		return
	case <-gracePeriodElapsed:
		_ = proc.Kill()
	}
}

// wasKilled reports whether this stage's exit was requested by the
// orchestrator rather than a genuine crash.
func (s *Stage) wasKilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentionalStop
}
