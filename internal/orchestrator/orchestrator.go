package orchestrator

import (
	"sync"
	"time"

	"github.com/richinsley/audiostagepipe/internal/perr"
)

// PipelineState is the orchestrator's own state, distinct from each
// individual Stage's ProcessState.
type PipelineState int

const (
	Idle PipelineState = iota
	PipelineRunning
	PipelinePaused
	PipelineError
)

func (s PipelineState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case PipelineRunning:
		return "Running"
	case PipelinePaused:
		return "Paused"
	case PipelineError:
		return "Error"
	default:
		return "Unknown"
	}
}

// healthPollInterval matches the 10 Hz cadence used for health monitoring
// and status emission across the rest of this tree.
const healthPollInterval = 100 * time.Millisecond

// terminateGrace is the window between a graceful stop signal and the
// forceful one.
const terminateGrace = 1 * time.Second

// PipelineConfig configures pipeline construction: which optional stages run and
// with what DSP settings, mirroring the orchestrator's
// {use_fft_cache, use_dsp, dsp_preset, volume} inputs.
type PipelineConfig struct {
	UseFFTCache bool
	UseDSP      bool
	DSPPreset   string
	Volume      float64
}

// Orchestrator owns one pipeline's lifecycle from spawn through reap.
type Orchestrator struct {
	mu       sync.Mutex
	state    PipelineState
	pipeline *Pipeline
	stopHealth chan struct{}
}

// New returns an idle Orchestrator.
func New() *Orchestrator {
	return &Orchestrator{state: Idle}
}

// Start spawns specs as a pipeline and begins 10 Hz health monitoring. Idle
// -> Running.
func (o *Orchestrator) Start(specs []StageSpec) error {
	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return perr.New("orchestrator", perr.InvalidState, "Start requires Idle state")
	}
	o.mu.Unlock()

	p, err := Spawn(specs)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.pipeline = p
	o.state = PipelineRunning
	o.stopHealth = make(chan struct{})
	o.mu.Unlock()

	go o.monitorHealth()
	return nil
}

// Pause suspends the sink stage only; upstream stages block on pipe
// backpressure once the sink stops draining. Running -> Paused.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != PipelineRunning {
		return perr.New("orchestrator", perr.InvalidState, "Pause requires Running state")
	}
	sink := o.findStage(StageSink)
	if sink == nil {
		return perr.New("orchestrator", perr.InvalidOperation, "no sink stage in this pipeline")
	}
	if err := sink.Suspend(); err != nil {
		return err
	}
	o.state = PipelinePaused
	return nil
}

// Resume resumes the sink stage. Paused -> Running.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != PipelinePaused {
		return perr.New("orchestrator", perr.InvalidState, "Resume requires Paused state")
	}
	sink := o.findStage(StageSink)
	if sink == nil {
		return perr.New("orchestrator", perr.InvalidOperation, "no sink stage in this pipeline")
	}
	if err := sink.Continue(); err != nil {
		return err
	}
	o.state = PipelineRunning
	return nil
}

// Stop sends a graceful termination signal to every stage, escalating to a
// forceful one after terminateGrace, then reaps all stages. Valid from
// Running, Paused, or Error.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state == Idle {
		o.mu.Unlock()
		return perr.New("orchestrator", perr.InvalidState, "Stop requires a running pipeline")
	}
	pipeline := o.pipeline
	stopHealth := o.stopHealth
	o.mu.Unlock()

	if stopHealth != nil {
		close(stopHealth)
	}

	// A closed channel releases every stage's wait at once; a single
	// time.After value would reach only one of them.
	grace := make(chan struct{})
	graceTimer := time.AfterFunc(terminateGrace, func() { close(grace) })
	defer graceTimer.Stop()
	var wg sync.WaitGroup
	for _, stage := range pipeline.Stages {
		wg.Add(1)
		go func(s *Stage) {
			defer wg.Done()
			s.terminateGracefulWithin(grace)
		}(stage)
	}
	wg.Wait()

	o.mu.Lock()
	o.state = Idle
	o.pipeline = nil
	o.mu.Unlock()
	return nil
}

// State returns the orchestrator's current pipeline state.
func (o *Orchestrator) State() PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) findStage(kind StageKind) *Stage {
	for _, s := range o.pipeline.Stages {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

// monitorHealth polls every stage's state at 10 Hz; any unexpected exit
// transitions the pipeline to Error and stops the rest.
func (o *Orchestrator) monitorHealth() {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	o.mu.Lock()
	stopHealth := o.stopHealth
	o.mu.Unlock()

	for {
		select {
		case <-stopHealth:
			return
		case <-ticker.C:
			o.mu.Lock()
			if o.pipeline == nil {
				o.mu.Unlock()
				return
			}
			var failed *Stage
			for _, s := range o.pipeline.Stages {
				if s.State() == Exited && s.ExitCode() != 0 && !s.wasKilled() {
					failed = s
					break
				}
			}
			if failed != nil && o.state != PipelineError {
				o.state = PipelineError
				o.mu.Unlock()
				_ = o.Stop()
				return
			}
			o.mu.Unlock()
		}
	}
}
