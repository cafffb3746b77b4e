// Package policy checks process samples against the static CPU and memory thresholds.
package policy

import (
	"fmt"
	"time"

	"github.com/srodi/procguard/pkg/alertlog"
	"github.com/srodi/procguard/pkg/types"
)

// Evaluate returns one record per (sample, dimension) pair whose value is
// strictly above its threshold. Records follow enumeration order, CPU before MEM.
func Evaluate(samples []types.ProcessSample, policy types.PolicyConfig, now time.Time) []types.AlertRecord {
	var records []types.AlertRecord
	for _, s := range samples {
		cpu, mem := s.CPU(), s.Memory()
		if cpu > policy.CPUThresholdPercent {
			records = append(records, newRecord(s, types.DimensionCPU, cpu, policy.CPUThresholdPercent, now))
		}
		if mem > policy.MemThresholdPercent {
			records = append(records, newRecord(s, types.DimensionMemory, mem, policy.MemThresholdPercent, now))
		}
	}
	return records
}

// Exceeds reports whether either threshold is exceeded by the sample.
func Exceeds(s types.ProcessSample, policy types.PolicyConfig) bool {
	return s.CPU() > policy.CPUThresholdPercent || s.Memory() > policy.MemThresholdPercent
}

func newRecord(s types.ProcessSample, dim types.Dimension, value, threshold float64, now time.Time) types.AlertRecord {
	return types.AlertRecord{
		PID:           s.PID,
		Name:          s.Name,
		CPUPercent:    s.CPU(),
		MemoryPercent: s.Memory(),
		Dimension:     dim,
		Reason:        fmt.Sprintf("%s %.1f%% exceeds %.1f%% threshold by %.1f", dim, value, threshold, value-threshold),
		Timestamp:     now,
	}
}

// Evaluator couples evaluation with the alert log: a record is only returned
// once it has been appended.
type Evaluator struct {
	Sink alertlog.Sink
}

// Evaluate runs the threshold checks and appends every record at WARNING.
// The first append failure stops evaluation and is returned.
func (e Evaluator) Evaluate(samples []types.ProcessSample, policy types.PolicyConfig, now time.Time) ([]types.AlertRecord, error) {
	records := Evaluate(samples, policy, now)
	for i, rec := range records {
		entry := alertlog.Entry{
			Time:     rec.Timestamp,
			Severity: alertlog.Warning,
			Message:  rec.Message(),
			Key:      fmt.Sprintf("alert/%d/%s", rec.PID, rec.Dimension),
		}
		if err := e.Sink.Append(entry); err != nil {
			return records[:i], fmt.Errorf("logging alert for pid %d: %w", rec.PID, err)
		}
	}
	return records, nil
}
