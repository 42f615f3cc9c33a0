// Package session holds the server-side state for one in-flight field-query
// conversation, shared by the USSD and WhatsApp channel adapters.
package session

import (
	"errors"
	"time"
)

// Channel identifies the transport a session belongs to. ChannelAPI exists
// for audit attribution only; it never owns a session.
type Channel string

const (
	ChannelUSSD     Channel = "ussd"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelAPI      Channel = "api"
)

// State is a position in the navigation state machine. USSD re-derives its
// position from accumulated input depth on every request; WhatsApp persists
// the state explicitly across webhook deliveries.
type State string

const (
	StateMainMenu       State = "MAIN_MENU"
	StateAwaitingSearch State = "AWAITING_SEARCH"
	StateAwaitingPIN    State = "AWAITING_PIN"
	StateResultSent     State = "RESULT_SENT"
)

// QueryType is one of the five supported field checks.
type QueryType string

const (
	QueryWanted     QueryType = "wanted"
	QueryMissing    QueryType = "missing"
	QueryBackground QueryType = "background"
	QueryVehicle    QueryType = "vehicle"
	QueryStats      QueryType = "stats"
)

var (
	// ErrNotFound is returned by Update when no live session exists.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned when an update would move a session
	// along an edge that is not in the transition table. This is what stops
	// a stale or replayed webhook delivery from corrupting session state.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// menuChoices maps the numbered main-menu options to query types. The
// ordering is part of the gateway-facing contract; do not reorder.
var menuChoices = map[string]QueryType{
	"1": QueryWanted,
	"2": QueryMissing,
	"3": QueryBackground,
	"4": QueryVehicle,
	"5": QueryStats,
}

// QueryTypeFromChoice resolves a main-menu selection ("1".."5") to a query type.
func QueryTypeFromChoice(choice string) (QueryType, bool) {
	qt, ok := menuChoices[choice]
	return qt, ok
}

// NeedsSearchTerm reports whether the query type requires a search term.
// Stats queries operate on the officer's own history and skip the search step.
func (q QueryType) NeedsSearchTerm() bool {
	return q != QueryStats
}

// SearchPrompt is the user-facing prompt for the query's search input.
func (q QueryType) SearchPrompt() string {
	if q == QueryVehicle {
		return "Enter the vehicle number plate"
	}
	return "Enter the National ID number"
}

// transitions is the authoritative forward edge set. Same-state updates are
// always allowed (field mutations within a step, e.g. PIN attempt counting).
var transitions = map[State][]State{
	StateMainMenu:       {StateAwaitingSearch, StateAwaitingPIN},
	StateAwaitingSearch: {StateAwaitingPIN, StateMainMenu},
	StateAwaitingPIN:    {StateResultSent, StateMainMenu},
	StateResultSent:     {StateMainMenu},
}

// CanTransition reports whether moving between the two states is legal.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one live conversation. The zero OfficerID means PIN
// verification has not succeeded in this session's current lifetime.
type Session struct {
	ID           string    `json:"id"`
	Channel      Channel   `json:"channel"`
	State        State     `json:"state"`
	OfficerID    string    `json:"officer_id,omitempty"`
	QueryType    QueryType `json:"query_type,omitempty"`
	SearchTerm   string    `json:"search_term,omitempty"`
	PINAttempts  int       `json:"pin_attempts"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// New creates a fresh session at the main menu.
func New(id string, ch Channel, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:           id,
		Channel:      ch,
		State:        StateMainMenu,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Expired reports whether the session has passed its TTL. This check inside
// store reads is the authoritative expiry guard; background sweeps only
// bound storage growth.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch extends the session on activity. The new expiry never exceeds
// CreatedAt + maxLifetime, so an active conversation is still bounded.
// A maxLifetime of 0 disables the cap.
func (s *Session) Touch(ttl, maxLifetime time.Duration) {
	now := time.Now().UTC()
	s.LastActivity = now
	expires := now.Add(ttl)
	if maxLifetime > 0 {
		if limit := s.CreatedAt.Add(maxLifetime); expires.After(limit) {
			expires = limit
		}
	}
	s.ExpiresAt = expires
}

// Reset returns the session to the main menu, clearing authentication and
// query progress. Used on PIN-attempt exhaustion and post-result restart.
func (s *Session) Reset() {
	s.State = StateMainMenu
	s.OfficerID = ""
	s.QueryType = ""
	s.SearchTerm = ""
	s.PINAttempts = 0
}

// Authenticated reports whether PIN verification has succeeded for this
// session since its last reset.
func (s *Session) Authenticated() bool {
	return s.OfficerID != ""
}
