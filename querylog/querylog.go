// Package querylog is the append-only audit record of executed field
// queries. It serves two consumers: the rate limiter's daily counting
// window and compliance audit. Entries are never mutated or deleted except
// by the retention purge.
package querylog

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/storage"
)

const (
	namespace = "querylog"
	entryType = "ENTRY"
)

// Entry is one executed (or attempted) field query.
type Entry struct {
	ID            string            `json:"id"`
	OfficerID     string            `json:"officer_id"`
	Channel       session.Channel   `json:"channel"`
	QueryType     session.QueryType `json:"query_type"`
	SearchTerm    string            `json:"search_term,omitempty"`
	ResultSummary string            `json:"result_summary"`
	Success       bool              `json:"success"`
	DurationMS    int64             `json:"duration_ms"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Store is the interface the rate limiter and dispatcher depend on.
type Store interface {
	// Append writes one entry. Callers treat failures as best-effort: a
	// lost audit row must never mask the user-facing result.
	Append(e Entry) error
	// CountSince counts an officer's entries with CreatedAt >= since,
	// across all channels.
	CountSince(officerID string, since time.Time) (int, error)
	// OfficerEntries returns all retained entries for one officer.
	OfficerEntries(officerID string) ([]Entry, error)
}

// Log implements Store on a storage.Repository. Entries are keyed
// "officerID:entryID" so per-officer reads are a prefix scan, bounded by
// the daily limit and the retention purge.
type Log struct {
	repo storage.Repository
}

var _ Store = (*Log)(nil)

// NewLog creates a query log on the given repository.
func NewLog(repo storage.Repository) *Log {
	return &Log{repo: repo}
}

func (l *Log) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return storage.PutJSON(l.repo, namespace, entryType, e.OfficerID+":"+e.ID, e)
}

func (l *Log) OfficerEntries(officerID string) ([]Entry, error) {
	ids, err := l.repo.List(namespace, entryType)
	if err != nil {
		return nil, err
	}
	prefix := officerID + ":"
	var entries []Entry
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		var e Entry
		if err := storage.GetJSON(l.repo, namespace, entryType, id, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (l *Log) CountSince(officerID string, since time.Time) (int, error) {
	entries, err := l.OfficerEntries(officerID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// All returns every retained entry, newest first. Used by the admin audit
// listing, never by the channel hot path.
func (l *Log) All() ([]Entry, error) {
	ids, err := l.repo.List(namespace, entryType)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		rec, err := l.repo.Get(namespace, entryType, id)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// PurgeOlderThan deletes entries created before cutoff and returns how many
// were removed. Run from the retention cron job.
func (l *Log) PurgeOlderThan(cutoff time.Time) (int, error) {
	ids, err := l.repo.List(namespace, entryType)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, id := range ids {
		var e Entry
		if err := storage.GetJSON(l.repo, namespace, entryType, id, &e); err != nil {
			continue
		}
		if e.CreatedAt.Before(cutoff) {
			if err := l.repo.Delete(namespace, entryType, id); err == nil {
				purged++
			}
		}
	}
	return purged, nil
}

// OfficerStats aggregates an officer's own query history for the stats
// check. Week and month are rolling 7- and 30-day windows.
type OfficerStats struct {
	Today       int                       `json:"today"`
	Week        int                       `json:"week"`
	Month       int                       `json:"month"`
	Total       int                       `json:"total"`
	ByType      map[session.QueryType]int `json:"by_type"`
	SuccessRate float64                   `json:"success_rate"`
}

// Stats computes the aggregate counters from the officer's retained entries.
func (l *Log) Stats(officerID string, now time.Time) (*OfficerStats, error) {
	entries, err := l.OfficerEntries(officerID)
	if err != nil {
		return nil, err
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats := &OfficerStats{ByType: make(map[session.QueryType]int)}
	succeeded := 0
	for _, e := range entries {
		stats.Total++
		stats.ByType[e.QueryType]++
		if e.Success {
			succeeded++
		}
		if !e.CreatedAt.Before(startOfDay) {
			stats.Today++
		}
		if !e.CreatedAt.Before(now.AddDate(0, 0, -7)) {
			stats.Week++
		}
		if !e.CreatedAt.Before(now.AddDate(0, 0, -30)) {
			stats.Month++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.Total)
	}
	return stats, nil
}
