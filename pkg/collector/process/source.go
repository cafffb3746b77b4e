// Package process samples live process state through gopsutil.
package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gproc "github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/procguard/pkg/types"
)

// handle is the subset of *gproc.Process the source reads from.
type handle interface {
	NameWithContext(ctx context.Context) (string, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
	PercentWithContext(ctx context.Context, interval time.Duration) (float64, error)
	MemoryPercentWithContext(ctx context.Context) (float32, error)
	MemoryInfoWithContext(ctx context.Context) (*gproc.MemoryInfoStat, error)
	StatusWithContext(ctx context.Context) ([]string, error)
}

// Seams so tests can avoid touching the real process table.
var (
	listPIDs    = gproc.PidsWithContext
	openProcess = func(ctx context.Context, pid int32) (handle, error) {
		return gproc.NewProcessWithContext(ctx, pid)
	}
	cpuPercent    = cpu.PercentWithContext
	cpuCounts     = cpu.CountsWithContext
	virtualMemory = mem.VirtualMemoryWithContext
	swapMemory    = mem.SwapMemoryWithContext
)

type checkpoint struct {
	h       handle
	created int64
}

// Source enumerates processes and keeps one gopsutil handle per PID so that CPU
// percent is computed against the previous call's CPU times.
type Source struct {
	handles map[int32]checkpoint
}

// NewSource returns a Source with an empty checkpoint cache.
func NewSource() *Source {
	return &Source{handles: make(map[int32]checkpoint)}
}

// Sample returns every readable process in enumeration order. Processes that
// exit or deny access mid-read are left out.
func (s *Source) Sample(ctx context.Context) ([]types.ProcessSample, error) {
	pids, err := listPIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	seen := make(map[int32]struct{}, len(pids))
	samples := make([]types.ProcessSample, 0, len(pids))
	for _, pid := range pids {
		sample, ok := s.read(ctx, pid)
		if !ok {
			delete(s.handles, pid)
			continue
		}
		seen[pid] = struct{}{}
		samples = append(samples, sample)
	}

	for pid := range s.handles {
		if _, ok := seen[pid]; !ok {
			delete(s.handles, pid)
		}
	}
	return samples, nil
}

func (s *Source) read(ctx context.Context, pid int32) (types.ProcessSample, bool) {
	fresh, err := openProcess(ctx, pid)
	if err != nil {
		return types.ProcessSample{}, false
	}

	created, err := fresh.CreateTimeWithContext(ctx)
	if err != nil && omit(err) {
		return types.ProcessSample{}, false
	}

	// Reuse the previous handle only while it still points at the same process;
	// a recycled PID gets a fresh CPU checkpoint.
	h := fresh
	if prev, ok := s.handles[pid]; ok && created != 0 && prev.created == created {
		h = prev.h
	} else {
		s.handles[pid] = checkpoint{h: fresh, created: created}
	}

	name, err := fresh.NameWithContext(ctx)
	if err != nil {
		if omit(err) {
			return types.ProcessSample{}, false
		}
		name = ""
	}

	sample := types.ProcessSample{
		PID:        pid,
		Name:       name,
		Status:     types.StatusUnknown,
		CreateTime: created,
	}

	if pct, err := h.PercentWithContext(ctx, 0); err == nil {
		sample.CPUPercent = &pct
	} else if isGone(err) {
		return types.ProcessSample{}, false
	}

	if pct, err := fresh.MemoryPercentWithContext(ctx); err == nil {
		v := float64(pct)
		sample.MemoryPercent = &v
	} else if isGone(err) {
		return types.ProcessSample{}, false
	}

	if info, err := fresh.MemoryInfoWithContext(ctx); err == nil && info != nil {
		rss := info.RSS
		sample.RSSBytes = &rss
	} else if isGone(err) {
		return types.ProcessSample{}, false
	}

	if states, err := fresh.StatusWithContext(ctx); err == nil && len(states) > 0 {
		sample.Status = mapStatus(states[0])
	} else if isGone(err) {
		return types.ProcessSample{}, false
	}

	return sample, true
}

// System reads the aggregate header values. Whatever could be read is
// returned alongside the joined errors for the parts that failed.
func (s *Source) System(ctx context.Context) (types.SystemStats, error) {
	var stats types.SystemStats
	var errs error

	if pct, err := cpuPercent(ctx, 0, false); err != nil {
		errs = errors.Join(errs, fmt.Errorf("reading cpu percent: %w", err))
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	if n, err := cpuCounts(ctx, true); err != nil {
		errs = errors.Join(errs, fmt.Errorf("counting cpus: %w", err))
	} else {
		stats.CPUCount = n
	}

	if vm, err := virtualMemory(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("reading virtual memory: %w", err))
	} else if vm != nil {
		stats.MemoryPercent = vm.UsedPercent
	}

	if sw, err := swapMemory(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("reading swap: %w", err))
	} else if sw != nil {
		stats.SwapPercent = sw.UsedPercent
	}

	return stats, errs
}
