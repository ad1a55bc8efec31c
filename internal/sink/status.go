package sink

import (
	"encoding/json"
	"io"
	"time"
)

// StatusLine is one JSON status emission.
type StatusLine struct {
	State          string  `json:"state"`
	PositionSamples int64  `json:"position_samples"`
	BufferFillPct  float64 `json:"buffer_fill_pct"`
	LatencyMs      float64 `json:"latency_ms"`
	Underruns      uint64  `json:"underruns"`
}

// statusInterval is the 10 Hz emission cadence mandated for the sink's
// status thread.
const statusInterval = 100 * time.Millisecond

// RunStatusLoop writes one StatusLine to w every 100ms until stop is
// closed. Verbose gates whether anything is actually written: emission is
// unconditional in verbose mode, silent otherwise, per the outer CLI's
// --verbose flag.
func (s *Sink) RunStatusLoop(w io.Writer, verbose bool, stop <-chan struct{}) {
	if !verbose {
		<-stop
		return
	}
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	enc := json.NewEncoder(w)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			line := StatusLine{
				State:           s.State().String(),
				PositionSamples: s.PositionSamples(),
				BufferFillPct:   s.BufferFillPercent(),
				LatencyMs:       s.LatencyMs(),
				Underruns:       s.Underruns(),
			}
			_ = enc.Encode(line)
		}
	}
}
