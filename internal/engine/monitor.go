package engine

import (
	"context"
	"time"
)

// Monitor drives the engine's promotion tick on a fixed interval.
// One-second resolution is enough; a coarser tick only delays when a
// promotion becomes visible.
type Monitor struct {
	engine   *Engine
	interval time.Duration
	onChange func(TickResult, error)
}

func NewMonitor(e *Engine, interval time.Duration, onChange func(TickResult, error)) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{engine: e, interval: interval, onChange: onChange}
}

// Run ticks until the context is cancelled. Ticks that find a mutation
// in flight are dropped, not queued.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := m.engine.Tick(ctx)
			if result.Skipped && err == nil {
				continue
			}
			if m.onChange != nil && (err != nil || result.FlaggedPending != nil || result.Promoted != nil) {
				m.onChange(result, err)
			}
		}
	}
}
