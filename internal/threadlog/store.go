// Package threadlog keeps an in-memory record of webhook-triggered runs so
// operators can see what the agent is doing per thread. It is observability
// only: losing it on restart affects nothing, the orchestrator owns the
// durable state.
package threadlog

import (
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record tracks one accepted webhook through its lifecycle.
type Record struct {
	ThreadID        string     `json:"thread_id"`
	IssueID         string     `json:"issue_id"`
	IssueIdentifier string     `json:"issue_identifier"`
	IssueTitle      string     `json:"issue_title"`
	RepoOwner       string     `json:"repo_owner"`
	RepoName        string     `json:"repo_name"`
	Actor           string     `json:"actor"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Logs            []LogEntry `json:"logs"`
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // info, error, success
	Message   string    `json:"message"`
}

type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
	}
}

// Track records a new webhook acceptance for a thread. Re-triggering an
// existing thread resets its status and keeps the accumulated logs.
func (s *Store) Track(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[record.ThreadID]; ok {
		existing.Status = StatusPending
		existing.IssueTitle = record.IssueTitle
		existing.Actor = record.Actor
		existing.UpdatedAt = now
		return
	}
	record.Status = StatusPending
	record.CreatedAt = now
	record.UpdatedAt = now
	s.records[record.ThreadID] = record
}

func (s *Store) Get(threadID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[threadID]
	if !ok {
		return nil, false
	}
	clone := *record
	clone.Logs = append([]LogEntry(nil), record.Logs...)
	return &clone, true
}

// List returns all records, most recently updated first.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		clone.Logs = append([]LogEntry(nil), record.Logs...)
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records
}

func (s *Store) SetStatus(threadID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[threadID]; ok {
		record.Status = status
		record.UpdatedAt = time.Now()
	}
}

func (s *Store) AddLog(threadID, level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[threadID]; ok {
		record.Logs = append(record.Logs, LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   message,
		})
		record.UpdatedAt = time.Now()
	}
}
