package session

import "time"

// Store abstracts session CRUD so that sessions can live in memory (USSD
// default), in persistent backing storage (WhatsApp), or in Redis.
type Store interface {
	// Get retrieves a live session. Returns false if the session does not
	// exist or has expired; an expired record is purged on read and never
	// returned stale.
	Get(id string) (Session, bool)
	// Save creates or replaces a session and resets its TTL clock to now.
	Save(id string, s Session, ttl time.Duration)
	// Update overwrites an existing session. It returns ErrNotFound if no
	// live session exists. Implementations that track explicit state
	// additionally reject updates whose state change is not in the
	// transition table with ErrInvalidTransition.
	Update(id string, s Session) error
	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(id string)
	// Exists reports whether a live (non-expired) session exists.
	Exists(id string) bool
}
