// Package enforce terminates processes that violate policy: a polite SIGTERM
// first, SIGKILL once the grace window has run out.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"

	gproc "github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/procguard/pkg/alertlog"
	"github.com/srodi/procguard/pkg/types"
)

const (
	// DefaultGraceTimeout is how long a process gets to exit after SIGTERM.
	DefaultGraceTimeout = 3 * time.Second
	// DefaultPollInterval is how often we check whether the target has exited.
	DefaultPollInterval = 100 * time.Millisecond
)

var errPIDReused = errors.New("pid reused by another process")

// Target is the subset of *gproc.Process the controller drives.
type Target interface {
	TerminateWithContext(ctx context.Context) error
	KillWithContext(ctx context.Context) error
	IsRunningWithContext(ctx context.Context) (bool, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
	StatusWithContext(ctx context.Context) ([]string, error)
}

func findProcess(ctx context.Context, pid int32) (Target, error) {
	return gproc.NewProcessWithContext(ctx, pid)
}

// Controller applies the termination policy to one sample at a time and
// records every outcome in the alert log.
type Controller struct {
	Policy       types.PolicyConfig
	Sink         alertlog.Sink
	GraceTimeout time.Duration
	PollInterval time.Duration
	// Lookup resolves a PID to a process that can be signalled.
	Lookup func(ctx context.Context, pid int32) (Target, error)

	selfPID int32
}

// NewController returns a controller using the real process table.
// A non-positive grace falls back to DefaultGraceTimeout.
func NewController(policy types.PolicyConfig, sink alertlog.Sink, grace time.Duration) *Controller {
	if grace <= 0 {
		grace = DefaultGraceTimeout
	}
	return &Controller{
		Policy:       policy,
		Sink:         sink,
		GraceTimeout: grace,
		PollInterval: DefaultPollInterval,
		Lookup:       findProcess,
		selfPID:      int32(os.Getpid()),
	}
}

// Enforce attempts to terminate the sampled process. Failures to signal the
// process are reported in the Outcome; the returned error is only non-nil when
// the outcome could not be written to the alert log.
func (c *Controller) Enforce(ctx context.Context, s types.ProcessSample) (types.Outcome, error) {
	out := c.attempt(ctx, s)

	entry := alertlog.Entry{
		Time:     time.Now(),
		Severity: severity(out.Kind),
		Message:  out.Message(),
		Key:      fmt.Sprintf("%s/%d", out.Kind, s.PID),
	}
	if err := c.Sink.Append(entry); err != nil {
		return out, fmt.Errorf("logging enforcement for pid %d: %w", s.PID, err)
	}
	slog.Info("Enforcement finished", "pid", s.PID, "name", s.Name, "outcome", out.Kind.String(), "reason", out.Reason)
	return out, nil
}

func (c *Controller) attempt(ctx context.Context, s types.ProcessSample) (out types.Outcome) {
	out = types.Outcome{PID: s.PID, Name: s.Name}
	defer func() {
		if r := recover(); r != nil {
			out.Kind = types.OutcomeFailed
			out.Reason = fmt.Sprintf("unexpected panic: %v", r)
		}
	}()

	if c.protected(s) {
		out.Kind = types.OutcomeSkipped
		out.Reason = "protected"
		return out
	}

	target, err := c.Lookup(ctx, s.PID)
	if err != nil {
		return failed(out, err)
	}
	if s.CreateTime != 0 {
		created, err := target.CreateTimeWithContext(ctx)
		if err != nil {
			return failed(out, err)
		}
		if created != s.CreateTime {
			return failed(out, errPIDReused)
		}
	}

	if err := target.TerminateWithContext(ctx); err != nil {
		return failed(out, err)
	}
	if c.waitExit(ctx, target) {
		out.Kind = types.OutcomeKilledGraceful
		return out
	}

	if err := target.KillWithContext(ctx); err != nil {
		if isGone(err) {
			// exited right at the deadline
			out.Kind = types.OutcomeKilledGraceful
			return out
		}
		return failed(out, err)
	}
	out.Kind = types.OutcomeKilledForced
	return out
}

func (c *Controller) protected(s types.ProcessSample) bool {
	return c.Policy.IsProtected(s.Name) || s.PID <= 1 || (c.selfPID != 0 && s.PID == c.selfPID)
}

// waitExit polls until the target is gone or GraceTimeout has fully elapsed.
func (c *Controller) waitExit(ctx context.Context, t Target) bool {
	poll := c.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := time.Now().Add(c.GraceTimeout)
	for {
		if exited(ctx, t) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		time.Sleep(min(poll, remaining))
	}
}

// exited treats zombies as gone: they have released everything but the PID.
func exited(ctx context.Context, t Target) bool {
	running, err := t.IsRunningWithContext(ctx)
	if err != nil {
		return isGone(err)
	}
	if !running {
		return true
	}
	states, err := t.StatusWithContext(ctx)
	if err != nil {
		return isGone(err)
	}
	return len(states) > 0 && states[0] == gproc.Zombie
}

func failed(out types.Outcome, err error) types.Outcome {
	out.Kind = types.OutcomeFailed
	out.Reason = describe(err)
	return out
}

func describe(err error) string {
	switch {
	case isGone(err):
		return "no such process"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	default:
		return err.Error()
	}
}

func isGone(err error) bool {
	return errors.Is(err, gproc.ErrorProcessNotRunning) ||
		errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ESRCH)
}

func severity(k types.OutcomeKind) alertlog.Severity {
	switch k {
	case types.OutcomeSkipped:
		return alertlog.Info
	case types.OutcomeFailed:
		return alertlog.Error
	default:
		return alertlog.Warning
	}
}
