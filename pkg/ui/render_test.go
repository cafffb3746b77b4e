package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/srodi/procguard/pkg/types"
)

func f64(v float64) *float64 { return &v }

func u64(v uint64) *uint64 { return &v }

func testFrame() Frame {
	return Frame{
		Updated:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Interval: 3 * time.Second,
		System:   types.SystemStats{CPUPercent: 42.5, CPUCount: 8, MemoryPercent: 63.1, SwapPercent: 1.5},
		Policy:   types.PolicyConfig{CPUThresholdPercent: 80, MemThresholdPercent: 80, SortKey: types.SortCPU},
		TopN:     10,
		Rows: []types.ProcessSample{
			{PID: 1, Name: "sshd", CPUPercent: f64(95), MemoryPercent: f64(10), RSSBytes: u64(5 << 20), Status: types.StatusRunning},
			{PID: 3, Name: "idle", CPUPercent: f64(1), MemoryPercent: f64(1), Status: types.StatusSleeping},
		},
	}
}

func TestRenderHeaderAndTable(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Screen{Out: &buf}).Render(testFrame()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, clearSeq) {
		t.Fatalf("frame should start by clearing the screen")
	}
	for _, want := range []string{"CPU Total: 42.5%", "CPU Count: 8", "Memory: 63.1%", "Swap: 1.5%", "PID", "RSS MB", "STATUS"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in frame:\n%s", want, out)
		}
	}
	if strings.Contains(out, "procguard  •") {
		t.Fatalf("banner rendered although disabled")
	}
	if strings.Contains(out, "alert(s)") {
		t.Fatalf("no alerts summary expected without alerts")
	}
}

func TestRenderMarksRowsOverThreshold(t *testing.T) {
	var buf bytes.Buffer
	_ = (&Screen{Out: &buf}).Render(testFrame())
	var sshd, idle string
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, " sshd "):
			sshd = line
		case strings.Contains(line, " idle "):
			idle = line
		}
	}
	if !strings.HasSuffix(sshd, warningMarker) {
		t.Fatalf("expected warning marker on sshd row: %q", sshd)
	}
	if strings.Contains(idle, warningMarker) {
		t.Fatalf("idle row should not be marked: %q", idle)
	}
	if !strings.Contains(sshd, "    5.0") {
		t.Fatalf("expected RSS of 5.0 MB in row: %q", sshd)
	}
}

func TestRenderShowsLastThreeAlerts(t *testing.T) {
	f := testFrame()
	for i := int32(1); i <= 5; i++ {
		f.Alerts = append(f.Alerts, types.AlertRecord{PID: i * 100, Name: "job", Reason: "r"})
	}
	var buf bytes.Buffer
	_ = (&Screen{Out: &buf}).Render(f)
	out := buf.String()
	if !strings.Contains(out, "5 alert(s) this cycle") {
		t.Fatalf("missing alert count:\n%s", out)
	}
	for _, pid := range []string{"PID: 100 ", "PID: 200 "} {
		if strings.Contains(out, pid) {
			t.Fatalf("old alert %q should not be shown", pid)
		}
	}
	for _, pid := range []string{"PID: 300 ", "PID: 400 ", "PID: 500 "} {
		if !strings.Contains(out, pid) {
			t.Fatalf("recent alert %q missing", pid)
		}
	}
	if strings.Index(out, "alert(s)") > strings.Index(out, "STATUS") {
		t.Fatalf("alerts must be shown above the table")
	}
}

func TestRenderTruncatesNames(t *testing.T) {
	f := testFrame()
	long := strings.Repeat("x", 40)
	f.Rows = []types.ProcessSample{{PID: 7, Name: long}}
	var buf bytes.Buffer
	_ = (&Screen{Out: &buf}).Render(f)
	if strings.Contains(buf.String(), strings.Repeat("x", nameWidth+1)) {
		t.Fatalf("name not truncated to %d characters", nameWidth)
	}
	if truncate("ñandú-worker-with-a-long-name", 5) != "ñandú" {
		t.Fatalf("truncate should count runes")
	}
}

func TestRenderBannerAndColor(t *testing.T) {
	var buf bytes.Buffer
	_ = (&Screen{Out: &buf, Banner: true, Color: true}).Render(testFrame())
	out := buf.String()
	if !strings.Contains(out, "process watchdog") {
		t.Fatalf("banner missing")
	}
	if !strings.Contains(out, alertRed) {
		t.Fatalf("expected colored warning row")
	}
}

func TestRenderEmptyTable(t *testing.T) {
	f := testFrame()
	f.Rows = nil
	var buf bytes.Buffer
	_ = (&Screen{Out: &buf}).Render(f)
	if !strings.Contains(buf.String(), "No processes sampled") {
		t.Fatalf("expected empty-table notice")
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestRenderReturnsWriteErrors(t *testing.T) {
	if err := (&Screen{Out: brokenWriter{}}).Render(testFrame()); err == nil {
		t.Fatalf("expected write error")
	}
}
