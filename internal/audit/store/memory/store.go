// Package memory provides an in-memory log store. Unit tests and local
// development run against it; production uses the postgres store.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
)

// Store holds the four record streams in memory behind one RWMutex.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	entries  []audit.AuditLogEntry
	changes  []audit.ChangeRecord
	access   []audit.DataAccessRecord
	security []audit.SecurityEvent

	failWith error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// FailAppends makes every subsequent append return err, simulating a store
// outage. Pass nil to recover.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Clear drops all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.changes = nil
	s.access = nil
	s.security = nil
}

func (s *Store) AppendEntry(_ context.Context, entry audit.AuditLogEntry, changes []audit.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	s.seq++
	entry.Seq = s.seq
	s.entries = append(s.entries, entry)
	s.changes = append(s.changes, changes...)
	return nil
}

func (s *Store) AppendAccess(_ context.Context, rec audit.DataAccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.access = append(s.access, rec)
	return nil
}

func (s *Store) AppendSecurity(_ context.Context, ev audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.security = append(s.security, ev)
	return nil
}

func (s *Store) ListEntries(_ context.Context, f audit.Filter) ([]audit.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]audit.AuditLogEntry, 0)
	for _, e := range s.entries {
		if f.Matches(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].Seq > matched[j].Seq
	})
	return page(matched, f.Offset, f.Limit), nil
}

func (s *Store) ListChanges(_ context.Context, f audit.Filter) ([]audit.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A batch filter joins through the owning entries, since change records
	// carry the entry id rather than the batch id.
	var inBatch map[id.EntryID]bool
	if f.BatchID != nil {
		inBatch = make(map[id.EntryID]bool)
		for _, e := range s.entries {
			if e.BatchID != nil && *e.BatchID == *f.BatchID {
				inBatch[e.ID] = true
			}
		}
	}

	matched := make([]audit.ChangeRecord, 0)
	for _, c := range s.changes {
		if inBatch != nil && !inBatch[c.EntryID] {
			continue
		}
		if f.MatchesChange(c) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return newerID(matched[i].EntryID, matched[j].EntryID)
	})
	return page(matched, f.Offset, f.Limit), nil
}

func (s *Store) ListAccess(_ context.Context, f audit.Filter) ([]audit.DataAccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]audit.DataAccessRecord, 0)
	for _, r := range s.access {
		if f.MatchesAccess(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return newerID(matched[i].ID, matched[j].ID)
	})
	return page(matched, f.Offset, f.Limit), nil
}

func (s *Store) ListSecurity(_ context.Context, f audit.Filter) ([]audit.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]audit.SecurityEvent, 0)
	for _, ev := range s.security {
		if f.MatchesSecurity(ev) {
			matched = append(matched, ev)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return newerID(matched[i].ID, matched[j].ID)
	})
	return page(matched, f.Offset, f.Limit), nil
}

// newerID orders time-ordered UUIDv7 ids descending, so equal-timestamp rows
// page the same way the SQL store pages them.
func newerID(a, b id.EntryID) bool {
	return bytes.Compare(a[:], b[:]) > 0
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
