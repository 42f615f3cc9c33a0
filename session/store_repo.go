package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jmensah/fieldcheck/storage"
)

const (
	sessionNamespace  = "sessions"
	sessionRecordType = "SESSION"
	repoSweepInterval = 5 * time.Minute
)

// RepoStore stores sessions in a storage.Repository so they survive server
// restarts, which WhatsApp needs: a conversation spans independent webhook
// deliveries minutes apart. Updates are validated against the state
// machine's transition table, which makes a raced or replayed delivery a
// rejected no-op instead of a state corruption.
type RepoStore struct {
	repo        storage.Repository
	maxLifetime time.Duration
	stopOnce    sync.Once
	stopCh      chan struct{}
}

var _ Store = (*RepoStore)(nil)

// NewRepoStore creates a repository-backed session store and starts its
// background sweep loop. maxLifetime bounds a session's total life
// regardless of activity; 0 disables the cap.
func NewRepoStore(repo storage.Repository, maxLifetime time.Duration) *RepoStore {
	s := &RepoStore{
		repo:        repo,
		maxLifetime: maxLifetime,
		stopCh:      make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the background sweep goroutine.
func (r *RepoStore) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *RepoStore) load(id string) (Session, bool) {
	rec, err := r.repo.Get(sessionNamespace, sessionRecordType, id)
	if err != nil {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(rec.Data, &s); err != nil {
		// Corrupt entry, remove it.
		_ = r.repo.Delete(sessionNamespace, sessionRecordType, id)
		return Session{}, false
	}
	return s, true
}

func (r *RepoStore) persist(id string, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.repo.Put(sessionNamespace, sessionRecordType, id, &storage.Record{
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
}

func (r *RepoStore) Get(id string) (Session, bool) {
	s, ok := r.load(id)
	if !ok {
		return Session{}, false
	}
	if s.Expired(time.Now().UTC()) {
		r.Delete(id)
		return Session{}, false
	}
	return s, true
}

func (r *RepoStore) Save(id string, s Session, ttl time.Duration) {
	now := time.Now().UTC()
	s.ID = id
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivity = now
	s.ExpiresAt = now.Add(ttl)
	if r.maxLifetime > 0 {
		if limit := s.CreatedAt.Add(r.maxLifetime); s.ExpiresAt.After(limit) {
			s.ExpiresAt = limit
		}
	}
	if err := r.persist(id, s); err != nil {
		slog.Warn("session store: save failed", "session_id", id, "error", err)
	}
}

func (r *RepoStore) Update(id string, s Session) error {
	existing, ok := r.load(id)
	if !ok || existing.Expired(time.Now().UTC()) {
		_ = r.repo.Delete(sessionNamespace, sessionRecordType, id)
		return ErrNotFound
	}
	if !CanTransition(existing.State, s.State) {
		return ErrInvalidTransition
	}
	s.ID = id
	s.LastActivity = time.Now().UTC()
	if r.maxLifetime > 0 {
		if limit := existing.CreatedAt.Add(r.maxLifetime); s.ExpiresAt.After(limit) {
			s.ExpiresAt = limit
		}
	}
	return r.persist(id, s)
}

func (r *RepoStore) Delete(id string) {
	_ = r.repo.Delete(sessionNamespace, sessionRecordType, id)
}

func (r *RepoStore) Exists(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// sweepLoop periodically removes expired sessions from storage.
func (r *RepoStore) sweepLoop() {
	ticker := time.NewTicker(repoSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.SweepExpired()
		}
	}
}

// SweepExpired deletes expired session records. Failures are ignored: the
// sweep bounds storage growth and must never interfere with live requests.
func (r *RepoStore) SweepExpired() int {
	ids, err := r.repo.List(sessionNamespace, sessionRecordType)
	if err != nil {
		return 0
	}
	now := time.Now().UTC()
	purged := 0
	for _, id := range ids {
		s, ok := r.load(id)
		if !ok {
			purged++ // load already deleted the corrupt record
			continue
		}
		if s.Expired(now) {
			_ = r.repo.Delete(sessionNamespace, sessionRecordType, id)
			purged++
		}
	}
	return purged
}
