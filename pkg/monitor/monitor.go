// Package monitor runs the sample → rank → evaluate → enforce → render cycle.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/srodi/procguard/pkg/alertlog"
	"github.com/srodi/procguard/pkg/policy"
	"github.com/srodi/procguard/pkg/report"
	"github.com/srodi/procguard/pkg/types"
	"github.com/srodi/procguard/pkg/ui"
)

// Source provides the per-cycle snapshot and the system header.
type Source interface {
	Sample(ctx context.Context) ([]types.ProcessSample, error)
	System(ctx context.Context) (types.SystemStats, error)
}

// Enforcer terminates a violating process and records the outcome.
type Enforcer interface {
	Enforce(ctx context.Context, s types.ProcessSample) (types.Outcome, error)
}

// Renderer draws one frame.
type Renderer interface {
	Render(f ui.Frame) error
}

// Config is fixed for the lifetime of a Monitor.
type Config struct {
	Interval time.Duration
	TopN     int
	AutoKill bool
	Policy   types.PolicyConfig
}

// Monitor owns no state between cycles beyond its configuration.
type Monitor struct {
	cfg       Config
	source    Source
	evaluator policy.Evaluator
	enforcer  Enforcer
	renderer  Renderer
	now       func() time.Time
}

// New wires the collaborators. enforcer may be nil when AutoKill is off.
func New(cfg Config, source Source, sink alertlog.Sink, enforcer Enforcer, renderer Renderer) *Monitor {
	return &Monitor{
		cfg:       cfg,
		source:    source,
		evaluator: policy.Evaluator{Sink: sink},
		enforcer:  enforcer,
		renderer:  renderer,
		now:       time.Now,
	}
}

// Run warms up the CPU checkpoints and then cycles until ctx is cancelled.
// It returns nil on cancellation and an error only when the alert log can
// no longer be written.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("Monitor warming up", "interval", m.cfg.Interval, "sort", m.cfg.Policy.SortKey, "auto_kill", m.cfg.AutoKill)
	if _, err := m.source.Sample(ctx); err != nil {
		slog.Warn("Warm-up sample failed", "err", err)
	}
	if _, err := m.source.System(ctx); err != nil {
		slog.Debug("Warm-up system stats incomplete", "err", err)
	}
	if !sleep(ctx, m.cfg.Interval) {
		return nil
	}

	for ctx.Err() == nil {
		if err := m.Cycle(ctx); err != nil {
			return err
		}
		if !sleep(ctx, m.cfg.Interval) {
			return nil
		}
	}
	return nil
}

// Cycle performs one full pass. Only alert log failures are returned.
func (m *Monitor) Cycle(ctx context.Context) error {
	samples, err := m.source.Sample(ctx)
	if err != nil {
		slog.Warn("Sampling failed, skipping cycle", "err", err)
		return nil
	}
	system, err := m.source.System(ctx)
	if err != nil {
		slog.Debug("System stats incomplete", "err", err)
	}

	now := m.now()
	rows := report.TopN(samples, m.cfg.TopN, m.cfg.Policy.SortKey)
	alerts, err := m.evaluator.Evaluate(samples, m.cfg.Policy, now)
	if err != nil {
		return err
	}

	enforced := 0
	if m.cfg.AutoKill && m.enforcer != nil && len(alerts) > 0 {
		n, err := m.enforce(ctx, samples, alerts)
		enforced = n
		if err != nil {
			return err
		}
	}

	frame := ui.Frame{
		Updated:  now,
		Interval: m.cfg.Interval,
		System:   system,
		Rows:     rows,
		Alerts:   alerts,
		Policy:   m.cfg.Policy,
		TopN:     m.cfg.TopN,
	}
	if err := m.renderer.Render(frame); err != nil {
		slog.Warn("Render failed", "err", err)
	}

	slog.Debug("Cycle complete", "processes", len(samples), "alerts", len(alerts), "enforced", enforced)
	return nil
}

// enforce runs the controller once per alerting PID, in enumeration order.
// The kill runs detached from ctx so an interrupt never leaves an outcome unrecorded.
func (m *Monitor) enforce(ctx context.Context, samples []types.ProcessSample, alerts []types.AlertRecord) (int, error) {
	flagged := make(map[int32]struct{}, len(alerts))
	for _, a := range alerts {
		flagged[a.PID] = struct{}{}
	}

	kctx := context.WithoutCancel(ctx)
	n := 0
	for _, s := range samples {
		if _, ok := flagged[s.PID]; !ok {
			continue
		}
		delete(flagged, s.PID)
		if _, err := m.enforcer.Enforce(kctx, s); err != nil {
			return n, fmt.Errorf("enforcing pid %d: %w", s.PID, err)
		}
		n++
	}
	return n, nil
}

// sleep waits for d, returning false if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
