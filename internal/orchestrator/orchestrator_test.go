package orchestrator

import (
	"testing"
	"time"
)

func TestOrchestratorStartPauseResumeStop(t *testing.T) {
	o := New()
	specs := []StageSpec{{Kind: StageSink, Path: "/bin/sleep", Args: []string{"5"}}}
	if err := o.Start(specs); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != PipelineRunning {
		t.Fatalf("state = %v, want Running", o.State())
	}

	if err := o.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if o.State() != PipelinePaused {
		t.Fatalf("state = %v, want Paused", o.State())
	}

	if err := o.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if o.State() != PipelineRunning {
		t.Fatalf("state = %v, want Running", o.State())
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if o.State() != Idle {
		t.Fatalf("state = %v, want Idle", o.State())
	}
}

func TestOrchestratorPauseFromIdleIsInvalidState(t *testing.T) {
	o := New()
	if err := o.Pause(); err == nil {
		t.Fatal("expected error pausing an idle orchestrator")
	}
}

func TestOrchestratorStartFromRunningIsInvalidState(t *testing.T) {
	o := New()
	specs := []StageSpec{{Kind: StageSink, Path: "/bin/sleep", Args: []string{"5"}}}
	if err := o.Start(specs); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	if err := o.Start(specs); err == nil {
		t.Fatal("expected error starting an already-running orchestrator")
	}
}

func TestOrchestratorDetectsNonZeroExit(t *testing.T) {
	o := New()
	specs := []StageSpec{{Kind: StageSink, Path: "/bin/sh", Args: []string{"-c", "exit 1"}}}
	if err := o.Start(specs); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == PipelineError || o.State() == Idle {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("pipeline never transitioned out of Running after a failing stage exited; state = %v", o.State())
}
