// Package ui draws the full-screen process table.
package ui

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/srodi/procguard/pkg/policy"
	"github.com/srodi/procguard/pkg/types"
)

const (
	clearSeq      = "\033[H\033[2J"
	nameWidth     = 25
	recentAlerts  = 3
	ruleWidth     = 72
	warningMarker = "⚠"
)

// Frame is everything shown for one cycle.
type Frame struct {
	Updated  time.Time
	Interval time.Duration
	System   types.SystemStats
	Rows     []types.ProcessSample
	Alerts   []types.AlertRecord
	Policy   types.PolicyConfig
	TopN     int
}

// Screen writes frames to Out, clearing it first.
type Screen struct {
	Out    io.Writer
	Banner bool
	Color  bool
}

// Render replaces the screen contents with f in a single write.
func (s *Screen) Render(f Frame) error {
	var buf bytes.Buffer
	buf.WriteString(clearSeq)
	if s.Banner {
		buf.WriteString(Banner())
	}
	writeFrame(&buf, f, s.Color)
	if _, err := s.Out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("rendering frame: %w", err)
	}
	return nil
}

func writeFrame(buf *bytes.Buffer, f Frame, color bool) {
	fmt.Fprintf(buf, "procguard (press Ctrl+C to exit)\n")
	fmt.Fprintf(buf, "Updated: %s | Interval: %v | Sort: %s | Top %d\n",
		f.Updated.Format(time.RFC3339), f.Interval, f.Policy.SortKey, f.TopN)
	fmt.Fprintf(buf, " CPU Total: %.1f%%  CPU Count: %d  Memory: %.1f%%  Swap: %.1f%%\n\n",
		f.System.CPUPercent, f.System.CPUCount, f.System.MemoryPercent, f.System.SwapPercent)

	if n := len(f.Alerts); n > 0 {
		fmt.Fprintf(buf, "%s %d alert(s) this cycle (CPU > %.1f%%, MEM > %.1f%%)\n",
			paint(color, alertRed, "[!]"), n, f.Policy.CPUThresholdPercent, f.Policy.MemThresholdPercent)
		start := max(n-recentAlerts, 0)
		for _, a := range f.Alerts[start:] {
			fmt.Fprintf(buf, "   %s\n", a.Message())
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	fmt.Fprintf(buf, "%7s  %-25s %6s  %6s  %8s  %-10s\n", "PID", "NAME", "CPU%", "MEM%", "RSS MB", "STATUS")
	buf.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	if len(f.Rows) == 0 {
		fmt.Fprintln(buf, paint(color, dim, "No processes sampled this cycle"))
		return
	}
	for _, row := range f.Rows {
		line := fmt.Sprintf("%7d  %-25s %6.1f  %6.1f  %8.1f  %-10s",
			row.PID, truncate(row.Name, nameWidth), row.CPU(), row.Memory(), row.RSSMB(), row.Status)
		if policy.Exceeds(row, f.Policy) {
			line = paint(color, alertRed, line+" "+warningMarker)
		}
		buf.WriteString(line + "\n")
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}

func paint(enabled bool, color, s string) string {
	if !enabled {
		return s
	}
	return color + s + reset
}
