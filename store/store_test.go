package store

import (
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openMemory(t)

	s.Record(&Run{Source: "https://example.com", Selector: ".go", Mode: "all", Matches: 2, DurationUs: 1200})
	s.Record(&Run{Source: "html", Selector: "button", Mode: "first", Matches: 1, DurationUs: 40})
	s.Flush()

	runs, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("Recent: got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Selector != "button" {
		t.Errorf("Recent[0].Selector = %q, want %q", runs[0].Selector, "button")
	}
	if runs[1].Matches != 2 {
		t.Errorf("Recent[1].Matches = %d, want 2", runs[1].Matches)
	}
	if runs[0].Timestamp == 0 {
		t.Error("Record should default a zero timestamp")
	}
	if !strings.HasPrefix(runs[0].RunID, "run_") {
		t.Errorf("RunID = %q, want a run_ prefixed ID", runs[0].RunID)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := openMemory(t)

	for i := 0; i < 5; i++ {
		s.Record(&Run{Source: "html", Selector: ".x", Mode: "all", Matches: i})
	}
	s.Flush()

	runs, err := s.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("Recent(3): got %d runs, want 3", len(runs))
	}
}

func TestStore_ErrorColumn(t *testing.T) {
	s := openMemory(t)

	s.Record(&Run{Source: "html", Selector: "div[", Mode: "first", Error: "htmldom: unterminated attribute selector"})
	s.Flush()

	runs, err := s.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Error == "" {
		t.Fatalf("Recent: got %+v, want recorded error", runs)
	}
}
