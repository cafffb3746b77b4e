package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTopN controls how many processes we display per refresh.
const DefaultTopN = 10

// Status is the scheduler state reported for a process.
type Status string

const (
	StatusRunning  Status = "running"
	StatusSleeping Status = "sleeping"
	StatusIdle     Status = "idle"
	StatusStopped  Status = "stopped"
	StatusZombie   Status = "zombie"
	StatusWaiting  Status = "waiting"
	StatusLocked   Status = "locked"
	StatusBlocked  Status = "blocked"
	StatusUnknown  Status = "unknown"
)

// ProcessSample holds what we observed about one PID at a sampling instant.
// Nil metric pointers mean the value could not be read.
type ProcessSample struct {
	PID           int32
	Name          string
	CPUPercent    *float64
	MemoryPercent *float64
	RSSBytes      *uint64
	Status        Status
	CreateTime    int64 // ms since epoch, 0 when unknown
}

// CPU returns the CPU percent, treating an absent value as 0.
func (s ProcessSample) CPU() float64 {
	if s.CPUPercent == nil {
		return 0
	}
	return *s.CPUPercent
}

// Memory returns the memory percent, treating an absent value as 0.
func (s ProcessSample) Memory() float64 {
	if s.MemoryPercent == nil {
		return 0
	}
	return *s.MemoryPercent
}

// RSSMB converts the resident set size to megabytes.
func (s ProcessSample) RSSMB() float64 {
	if s.RSSBytes == nil {
		return 0
	}
	return float64(*s.RSSBytes) / (1024 * 1024)
}

// SortKey selects the metric used for ranking.
type SortKey int

const (
	SortCPU SortKey = iota
	SortMemory
)

// ParseSortKey accepts cpu, mem or memory (case-insensitive).
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return SortCPU, nil
	case "mem", "memory":
		return SortMemory, nil
	}
	return SortCPU, fmt.Errorf("unknown sort key %q (want cpu or mem)", s)
}

func (k SortKey) String() string {
	if k == SortMemory {
		return "memory"
	}
	return "cpu"
}

// Value extracts the ranking metric for a sample.
func (k SortKey) Value(s ProcessSample) float64 {
	if k == SortMemory {
		return s.Memory()
	}
	return s.CPU()
}

// Dimension names the threshold an alert is about.
type Dimension string

const (
	DimensionCPU    Dimension = "CPU"
	DimensionMemory Dimension = "MEM"
)

// AlertRecord is a single threshold violation observed during one cycle.
type AlertRecord struct {
	PID           int32
	Name          string
	CPUPercent    float64
	MemoryPercent float64
	Dimension     Dimension
	Reason        string
	Timestamp     time.Time
}

// Message renders the record the way it is written to the alert log.
func (a AlertRecord) Message() string {
	return fmt.Sprintf("ALERT | PID: %d | Name: %s | CPU: %.1f%% | MEM: %.1f%% | Reason: %s",
		a.PID, a.Name, a.CPUPercent, a.MemoryPercent, a.Reason)
}

// PolicyConfig is built once at startup and passed by value afterwards.
type PolicyConfig struct {
	CPUThresholdPercent float64
	MemThresholdPercent float64
	ProtectedNames      map[string]struct{}
	SortKey             SortKey
}

// NewProtectedSet lower-cases and de-duplicates names, dropping blanks.
func NewProtectedSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// IsProtected reports whether name is exempt from termination.
func (p PolicyConfig) IsProtected(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	_, ok := p.ProtectedNames[name]
	return ok
}

// SystemStats is the aggregate header shown above the process table.
type SystemStats struct {
	CPUPercent    float64
	CPUCount      int
	MemoryPercent float64
	SwapPercent   float64
}

// OutcomeKind classifies what the termination controller did.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeKilledGraceful
	OutcomeKilledForced
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeKilledGraceful:
		return "killed-graceful"
	case OutcomeKilledForced:
		return "killed-forced"
	default:
		return "failed"
	}
}

// Outcome is the result of one enforcement attempt.
type Outcome struct {
	Kind   OutcomeKind
	PID    int32
	Name   string
	Reason string
}

// Message renders the outcome for the alert log.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSkipped:
		return fmt.Sprintf("SKIPPED kill for protected process: %s (PID %d)", o.Name, o.PID)
	case OutcomeKilledGraceful:
		return fmt.Sprintf("KILLED (SIGTERM) PID %d (%s)", o.PID, o.Name)
	case OutcomeKilledForced:
		return fmt.Sprintf("KILLED (SIGKILL) PID %d (%s)", o.PID, o.Name)
	default:
		return fmt.Sprintf("Could not kill PID %d (%s): %s", o.PID, o.Name, o.Reason)
	}
}
