// Package ratelimit enforces the per-officer daily query quota. The budget
// is shared across all channels: a USSD query and a WhatsApp query draw
// from the same daily count.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/jmensah/fieldcheck/directory"
)

// Counter is the slice of the query log the limiter needs.
type Counter interface {
	CountSince(officerID string, since time.Time) (int, error)
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter checks officers against their daily query budget.
//
// The count is read and compared without a transactional guarantee against
// concurrent increments: two genuinely concurrent requests from the same
// officer can both pass at the boundary. At interactive pace on one officer
// the overshoot is bounded by the in-flight request count, which is the
// accepted approximation here.
type Limiter struct {
	counter      Counter
	resetHour    int
	defaultLimit int
	now          func() time.Time
}

// New creates a limiter. resetHour is the local hour (0-23) at which the
// daily window rolls over. defaultLimit is the budget for officers without
// a per-officer override; 0 takes directory.DefaultDailyQueryLimit.
func New(counter Counter, resetHour, defaultLimit int) *Limiter {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if defaultLimit <= 0 {
		defaultLimit = directory.DefaultDailyQueryLimit
	}
	return &Limiter{
		counter:      counter,
		resetHour:    resetHour,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// LimitFor is the officer's effective daily budget: the per-officer
// override when set, otherwise the limiter's configured default.
func (l *Limiter) LimitFor(o *directory.Officer) int {
	if o.DailyQueryLimit > 0 {
		return o.DailyQueryLimit
	}
	return l.defaultLimit
}

// Window returns the current window's start and the next reset time.
func (l *Limiter) Window() (start, resetAt time.Time) {
	now := l.now()
	start = time.Date(now.Year(), now.Month(), now.Day(), l.resetHour, 0, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}

// Check reports whether the officer may run another query right now.
//
// On a counting failure the gate fails closed: a denied decision and the
// error are both returned. Allowing through on measurement failure would
// turn storage trouble into an unlimited-query hole.
func (l *Limiter) Check(o *directory.Officer) (Decision, error) {
	start, resetAt := l.Window()
	limit := l.LimitFor(o)

	used, err := l.counter.CountSince(o.ID, start)
	if err != nil {
		return Decision{Allowed: false, Remaining: 0, Limit: limit, ResetAt: resetAt},
			fmt.Errorf("counting queries for officer %s: %w", o.ID, err)
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   used < limit,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}
