package report

import (
	"testing"

	"github.com/srodi/procguard/pkg/types"
)

func f64(v float64) *float64 { return &v }

func TestTopNTreatsAbsentCPUAsZero(t *testing.T) {
	samples := []types.ProcessSample{
		{PID: 1, CPUPercent: f64(90)},
		{PID: 2},
		{PID: 3, CPUPercent: f64(50)},
	}

	top := TopN(samples, 2, types.SortCPU)
	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(top))
	}
	if top[0].PID != 1 || top[1].PID != 3 {
		t.Fatalf("expected [1 3], got [%d %d]", top[0].PID, top[1].PID)
	}
}

func TestTopNSortsByMemory(t *testing.T) {
	samples := []types.ProcessSample{
		{PID: 1, CPUPercent: f64(99), MemoryPercent: f64(1)},
		{PID: 2, MemoryPercent: f64(40)},
		{PID: 3, MemoryPercent: f64(12)},
	}
	top := TopN(samples, 10, types.SortMemory)
	if len(top) != 3 {
		t.Fatalf("expected all 3 rows for short input, got %d", len(top))
	}
	want := []int32{2, 3, 1}
	for i, pid := range want {
		if top[i].PID != pid {
			t.Fatalf("row %d: expected pid %d, got %d", i, pid, top[i].PID)
		}
	}
}

func TestTopNIsStableAndDoesNotMutateInput(t *testing.T) {
	samples := []types.ProcessSample{
		{PID: 10, CPUPercent: f64(5)},
		{PID: 11, CPUPercent: f64(20)},
		{PID: 12, CPUPercent: f64(5)},
		{PID: 13, CPUPercent: f64(5)},
	}
	top := TopN(samples, 4, types.SortCPU)
	want := []int32{11, 10, 12, 13}
	for i, pid := range want {
		if top[i].PID != pid {
			t.Fatalf("row %d: expected pid %d, got %d", i, pid, top[i].PID)
		}
	}
	if samples[0].PID != 10 || samples[1].PID != 11 {
		t.Fatalf("input reordered: %+v", samples)
	}
}

func TestTopNLimits(t *testing.T) {
	samples := []types.ProcessSample{{PID: 1}, {PID: 2}, {PID: 3}}
	cases := []struct {
		name string
		n    int
		want int
	}{
		{"zero", 0, 0},
		{"negative", -1, 0},
		{"one", 1, 1},
		{"exact", 3, 3},
		{"larger", 50, 3},
	}
	for _, tc := range cases {
		if got := len(TopN(samples, tc.n, types.SortCPU)); got != tc.want {
			t.Fatalf("%s: expected %d rows, got %d", tc.name, tc.want, got)
		}
	}
	if got := TopN(nil, 5, types.SortCPU); len(got) != 0 {
		t.Fatalf("expected no rows for empty input, got %d", len(got))
	}
}

func TestTopNOrderingIsDescending(t *testing.T) {
	samples := []types.ProcessSample{
		{PID: 1, MemoryPercent: f64(3)},
		{PID: 2, MemoryPercent: f64(70)},
		{PID: 3},
		{PID: 4, MemoryPercent: f64(22.5)},
		{PID: 5, MemoryPercent: f64(22.6)},
	}
	top := TopN(samples, 4, types.SortMemory)
	if len(top) > 4 {
		t.Fatalf("returned more than n rows: %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i-1].Memory() < top[i].Memory() {
			t.Fatalf("rows not descending at %d: %.1f < %.1f", i, top[i-1].Memory(), top[i].Memory())
		}
	}
}
