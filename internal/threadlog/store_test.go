package threadlog

import (
	"testing"
)

func TestTrackAndGet(t *testing.T) {
	s := NewStore()
	s.Track(&Record{ThreadID: "t1", IssueIdentifier: "ENG-42", IssueTitle: "Login crash", Actor: "Ada"})

	record, ok := s.Get("t1")
	if !ok {
		t.Fatal("expected record")
	}
	if record.Status != StatusPending {
		t.Errorf("expected pending, got %s", record.Status)
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		t.Error("timestamps must be set")
	}
}

func TestRetriggerKeepsLogs(t *testing.T) {
	s := NewStore()
	s.Track(&Record{ThreadID: "t1", IssueTitle: "First"})
	s.AddLog("t1", "info", "run started")
	s.SetStatus("t1", StatusFailed)

	s.Track(&Record{ThreadID: "t1", IssueTitle: "First (retry)"})

	record, _ := s.Get("t1")
	if record.Status != StatusPending {
		t.Errorf("retrigger must reset status, got %s", record.Status)
	}
	if record.IssueTitle != "First (retry)" {
		t.Errorf("retrigger must refresh title, got %q", record.IssueTitle)
	}
	if len(record.Logs) != 1 {
		t.Errorf("logs must survive a retrigger, got %d entries", len(record.Logs))
	}
}

func TestListOrder(t *testing.T) {
	s := NewStore()
	s.Track(&Record{ThreadID: "t1"})
	s.Track(&Record{ThreadID: "t2"})
	s.AddLog("t1", "info", "touched last")

	records := s.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ThreadID != "t1" {
		t.Errorf("most recently updated first, got %s", records[0].ThreadID)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Track(&Record{ThreadID: "t1"})
	s.AddLog("t1", "info", "one")

	record, _ := s.Get("t1")
	record.Logs = append(record.Logs, LogEntry{Message: "mutated"})
	record.Status = StatusFailed

	fresh, _ := s.Get("t1")
	if len(fresh.Logs) != 1 || fresh.Status != StatusPending {
		t.Error("Get must return an isolated copy")
	}
}

func TestUnknownThreadNoops(t *testing.T) {
	s := NewStore()
	s.SetStatus("missing", StatusRunning)
	s.AddLog("missing", "info", "x")
	if _, ok := s.Get("missing"); ok {
		t.Error("expected no record")
	}
}
