package orchestrator

import (
	"testing"
	"time"
)

func TestSpawnTwoStagePipelinePassesDataThrough(t *testing.T) {
	specs := []StageSpec{
		{Kind: StageLoader, Path: "/bin/echo", Args: []string{"hello"}},
		{Kind: StageSink, Path: "/bin/cat"},
	}
	p, err := Spawn(specs)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	for _, s := range p.Stages {
		select {
		case <-s.exited:
		case <-time.After(2 * time.Second):
			t.Fatalf("stage %s did not exit in time", s.Kind)
		}
		if s.ExitCode() != 0 {
			t.Fatalf("stage %s exit code = %d, want 0", s.Kind, s.ExitCode())
		}
	}
}

func TestSpawnRejectsEmptySpecs(t *testing.T) {
	if _, err := Spawn(nil); err == nil {
		t.Fatal("expected error spawning an empty pipeline")
	}
}

func TestSuspendThenContinueRoundTrips(t *testing.T) {
	specs := []StageSpec{{Kind: StageSink, Path: "/bin/sleep", Args: []string{"1"}}}
	p, err := Spawn(specs)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	stage := p.Stages[0]

	if err := stage.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if stage.State() != Paused {
		t.Fatalf("state = %v, want Paused", stage.State())
	}
	if err := stage.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if stage.State() != Running {
		t.Fatalf("state = %v, want Running", stage.State())
	}

	grace := make(chan struct{})
	close(grace)
	stage.terminateGracefulWithin(grace)
}
