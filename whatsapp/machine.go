// Package whatsapp adapts the field-check core to the WhatsApp Business
// webhook/push model. Unlike USSD, a conversation here spans independent
// webhook deliveries minutes apart, so the position is an explicit state
// persisted between events rather than something re-derived from input.
package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmensah/fieldcheck/auth"
	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/session"
)

// Default TTLs: activity slides expiry by DefaultTTL, but never past
// DefaultMaxLifetime after creation.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxLifetime = 10 * time.Minute
)

// Engine drives one officer's conversation through the persisted state
// machine.
type Engine struct {
	store      session.Store
	auth       *auth.Authenticator
	limiter    *ratelimit.Limiter
	dispatcher *dispatch.Dispatcher
	client     Client
	ttl        time.Duration
	maxLife    time.Duration
	logger     *slog.Logger
}

// EngineDeps are the collaborators an Engine needs. Zero TTLs take the
// package defaults.
type EngineDeps struct {
	Store       session.Store
	Auth        *auth.Authenticator
	Limiter     *ratelimit.Limiter
	Dispatcher  *dispatch.Dispatcher
	Client      Client
	TTL         time.Duration
	MaxLifetime time.Duration
	Logger      *slog.Logger
}

// NewEngine creates a WhatsApp conversation engine.
func NewEngine(d EngineDeps) *Engine {
	if d.TTL <= 0 {
		d.TTL = DefaultTTL
	}
	if d.MaxLifetime <= 0 {
		d.MaxLifetime = DefaultMaxLifetime
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Engine{
		store:      d.Store,
		auth:       d.Auth,
		limiter:    d.Limiter,
		dispatcher: d.Dispatcher,
		client:     d.Client,
		ttl:        d.TTL,
		maxLife:    d.MaxLifetime,
		logger:     d.Logger,
	}
}

// Handle processes one inbound message. The session is keyed by the
// sender's normalized phone number, which is stable across deliveries.
func (e *Engine) Handle(ctx context.Context, from, input string) error {
	officer, err := e.auth.Identify(from, session.ChannelWhatsApp)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownOfficer) {
			return e.client.SendText(ctx, from, msgNotEnrolled)
		}
		return err
	}

	id := directory.NormalizePhone(from)
	s, ok := e.store.Get(id)
	if !ok {
		s = session.New(id, session.ChannelWhatsApp, e.ttl)
		e.store.Save(id, s, e.ttl)
		return e.sendMenu(ctx, from)
	}

	switch s.State {
	case session.StateMainMenu:
		return e.handleMenuChoice(ctx, from, s, input)
	case session.StateAwaitingSearch:
		return e.handleSearchTerm(ctx, from, s, input)
	case session.StateAwaitingPIN:
		return e.handlePIN(ctx, from, s, officer, input)
	case session.StateResultSent:
		// Any message after a result restarts at the menu.
		s.Reset()
		if err := e.commit(id, s); err != nil {
			return nil
		}
		return e.sendMenu(ctx, from)
	default:
		s.Reset()
		e.store.Save(id, s, e.ttl)
		return e.sendMenu(ctx, from)
	}
}

func (e *Engine) handleMenuChoice(ctx context.Context, from string, s session.Session, input string) error {
	// List rows carry their digit as the reply id, so interactive and
	// typed input converge on the same choice string.
	qt, ok := session.QueryTypeFromChoice(strings.TrimSpace(input))
	if !ok {
		if err := e.client.SendText(ctx, from, msgInvalidChoice); err != nil {
			return err
		}
		return e.sendMenu(ctx, from)
	}
	s.QueryType = qt
	if qt.NeedsSearchTerm() {
		s.State = session.StateAwaitingSearch
	} else {
		s.State = session.StateAwaitingPIN
	}
	if err := e.commit(s.ID, s); err != nil {
		return nil
	}
	if s.State == session.StateAwaitingSearch {
		return e.client.SendText(ctx, from, qt.SearchPrompt()+"\n\nSend 0 to cancel.")
	}
	return e.client.SendText(ctx, from, msgPINPrompt)
}

func (e *Engine) handleSearchTerm(ctx context.Context, from string, s session.Session, input string) error {
	if isCancel(input) {
		s.Reset()
		if err := e.commit(s.ID, s); err != nil {
			return nil
		}
		return e.sendMenu(ctx, from)
	}
	s.SearchTerm = strings.TrimSpace(input)
	s.State = session.StateAwaitingPIN
	if err := e.commit(s.ID, s); err != nil {
		return nil
	}
	return e.client.SendText(ctx, from, msgPINPrompt)
}

func (e *Engine) handlePIN(ctx context.Context, from string, s session.Session, officer *directory.Officer, input string) error {
	ok, _ := e.auth.VerifyPIN(officer, input, session.ChannelWhatsApp)
	if !ok {
		s.PINAttempts++
		if s.PINAttempts >= auth.MaxPINAttempts {
			// Session-level lockout: back to the menu with the distinct
			// too-many-attempts message, not the generic PIN failure.
			s.Reset()
			if err := e.commit(s.ID, s); err != nil {
				return nil
			}
			if err := e.client.SendText(ctx, from, msgTooManyAttempts); err != nil {
				return err
			}
			return e.sendMenu(ctx, from)
		}
		if err := e.commit(s.ID, s); err != nil {
			return nil
		}
		return e.client.SendText(ctx, from, invalidPINMessage(auth.MaxPINAttempts-s.PINAttempts))
	}

	decision, err := e.limiter.Check(officer)
	if err != nil {
		e.logger.Error("rate limit check failed", "officer_id", officer.ID, "error", err)
	}
	if !decision.Allowed {
		s.Reset()
		if err := e.commit(s.ID, s); err != nil {
			return nil
		}
		return e.client.SendText(ctx, from, rateLimitMessage(decision))
	}

	res := e.dispatcher.Dispatch(ctx, officer.ID, s.QueryType, s.SearchTerm, session.ChannelWhatsApp)
	s.OfficerID = officer.ID
	s.PINAttempts = 0
	s.State = session.StateResultSent
	if err := e.commit(s.ID, s); err != nil {
		// A stale delivery whose session already moved past AWAITING_PIN;
		// the reply for the live delivery is on its way, so stay silent.
		// Two deliveries that read AWAITING_PIN concurrently are not caught
		// here: both dispatch, and the second commit lands as a legal
		// same-state update. A provider retry at that exact moment answers
		// and logs twice.
		return nil
	}
	return e.client.SendText(ctx, from, renderResult(res)+"\n\nSend any message for a new query.")
}

// commit writes the session back with a slid TTL. A rejected transition
// means a stale or duplicated delivery; it is logged and dropped, never
// coerced into a legal state.
func (e *Engine) commit(id string, s session.Session) error {
	s.Touch(e.ttl, e.maxLife)
	if err := e.store.Update(id, s); err != nil {
		e.logger.Warn("session update rejected", "session_id", id, "state", s.State, "error", err)
		return err
	}
	return nil
}

func (e *Engine) sendMenu(ctx context.Context, to string) error {
	return e.client.SendMenu(ctx, to, msgMenuHeader, menuOptions())
}

func menuOptions() []MenuOption {
	return []MenuOption{
		{ID: "1", Title: "Wanted person check"},
		{ID: "2", Title: "Missing person check"},
		{ID: "3", Title: "Background check"},
		{ID: "4", Title: "Vehicle check"},
		{ID: "5", Title: "My query stats"},
	}
}

func isCancel(input string) bool {
	switch input {
	case "0", "cancel", "Cancel", "CANCEL":
		return true
	}
	return false
}
