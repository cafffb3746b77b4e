package types

import (
	"testing"
	"time"
)

func TestParseSortKey(t *testing.T) {
	cases := map[string]SortKey{"cpu": SortCPU, "CPU": SortCPU, "mem": SortMemory, " Memory ": SortMemory}
	for in, want := range cases {
		got, err := ParseSortKey(in)
		if err != nil || got != want {
			t.Fatalf("ParseSortKey(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSortKey("disk"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestSampleAccessorsTreatAbsentAsZero(t *testing.T) {
	var s ProcessSample
	if s.CPU() != 0 || s.Memory() != 0 || s.RSSMB() != 0 {
		t.Fatalf("absent metrics should read as zero")
	}
	cpu, mem, rss := 12.5, 40.0, uint64(256*1024*1024)
	s = ProcessSample{CPUPercent: &cpu, MemoryPercent: &mem, RSSBytes: &rss}
	if s.CPU() != 12.5 || s.Memory() != 40 || s.RSSMB() != 256 {
		t.Fatalf("unexpected accessors: %v %v %v", s.CPU(), s.Memory(), s.RSSMB())
	}
	if SortMemory.Value(s) != 40 || SortCPU.Value(s) != 12.5 {
		t.Fatalf("sort key picked the wrong metric")
	}
}

func TestIsProtectedIgnoresCase(t *testing.T) {
	p := PolicyConfig{ProtectedNames: NewProtectedSet("SSHD", " systemd ", "")}
	if !p.IsProtected("sshd") || !p.IsProtected("SystemD") {
		t.Fatalf("expected case-insensitive match")
	}
	if p.IsProtected("") || p.IsProtected("bash") {
		t.Fatalf("unexpected protection")
	}
	if len(p.ProtectedNames) != 2 {
		t.Fatalf("blank names should be dropped, got %v", p.ProtectedNames)
	}
}

func TestAlertRecordMessage(t *testing.T) {
	rec := AlertRecord{
		PID: 2, Name: "bloatjob", CPUPercent: 30, MemoryPercent: 92,
		Dimension: DimensionMemory, Reason: "MEM 92.0% exceeds 80.0% threshold by 12.0",
		Timestamp: time.Unix(0, 0),
	}
	want := "ALERT | PID: 2 | Name: bloatjob | CPU: 30.0% | MEM: 92.0% | Reason: MEM 92.0% exceeds 80.0% threshold by 12.0"
	if got := rec.Message(); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestOutcomeMessages(t *testing.T) {
	cases := []struct {
		out  Outcome
		want string
	}{
		{Outcome{Kind: OutcomeSkipped, PID: 1, Name: "sshd"}, "SKIPPED kill for protected process: sshd (PID 1)"},
		{Outcome{Kind: OutcomeKilledGraceful, PID: 2, Name: "job"}, "KILLED (SIGTERM) PID 2 (job)"},
		{Outcome{Kind: OutcomeKilledForced, PID: 3, Name: "hog"}, "KILLED (SIGKILL) PID 3 (hog)"},
		{Outcome{Kind: OutcomeFailed, PID: 4, Name: "x", Reason: "permission denied"}, "Could not kill PID 4 (x): permission denied"},
	}
	for _, tc := range cases {
		if got := tc.out.Message(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.out.Kind, got, tc.want)
		}
	}
}
