// Package auth resolves channel senders to officers and verifies Quick
// PINs. It is channel-agnostic: USSD and WhatsApp both call the same
// verification path, and session-level attempt counting lives with the
// channel state machines, not here.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/internal/util"
	"github.com/jmensah/fieldcheck/session"
)

// MaxPINAttempts is how many wrong PINs a single session tolerates before
// the channel handler resets it.
const MaxPINAttempts = 3

// Denial reasons recorded in the audit log. The caller-facing message is
// always the same generic failure; the reason never reaches the user.
const (
	ReasonUnknownPhone    = "unknown_phone"
	ReasonInactive        = "officer_inactive"
	ReasonChannelDisabled = "channel_disabled"
	ReasonLocked          = "officer_locked"
	ReasonBadPINFormat    = "bad_pin_format"
	ReasonWrongPIN        = "wrong_pin"
)

// ErrUnknownOfficer is returned when a sender phone number is not enrolled.
var ErrUnknownOfficer = errors.New("phone number not enrolled")

// Authenticator verifies officers against the directory.
type Authenticator struct {
	registry *directory.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an authenticator backed by the officer registry.
func New(registry *directory.Registry, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{registry: registry, logger: logger, now: time.Now}
}

// Identify resolves a sender phone number to an enrolled officer with the
// given channel enabled. The officer is identified but NOT authenticated;
// PIN verification is a separate step.
func (a *Authenticator) Identify(phone string, ch session.Channel) (*directory.Officer, error) {
	o, err := a.registry.FindByPhone(phone)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			a.logDenied("", ch, ReasonUnknownPhone)
			return nil, ErrUnknownOfficer
		}
		return nil, fmt.Errorf("resolving sender: %w", err)
	}
	if !o.Active {
		a.logDenied(o.ID, ch, ReasonInactive)
		return nil, ErrUnknownOfficer
	}
	if !o.ChannelEnabled(ch) {
		a.logDenied(o.ID, ch, ReasonChannelDisabled)
		return nil, ErrUnknownOfficer
	}
	return o, nil
}

// VerifyPIN checks the Quick PIN for an already-identified officer. The
// boolean result is the only signal callers may surface; the reason string
// is for the audit trail alone, so a caller cannot leak whether the PIN
// was malformed, wrong, or the account locked.
//
// Malformed PINs are rejected before the hash function runs: there is no
// point burning argon2 work on input that can never match.
func (a *Authenticator) VerifyPIN(o *directory.Officer, pin string, ch session.Channel) (bool, string) {
	if o.Locked(a.now()) {
		a.logDenied(o.ID, ch, ReasonLocked)
		return false, ReasonLocked
	}
	if !directory.ValidPINFormat(pin) {
		a.logDenied(o.ID, ch, ReasonBadPINFormat)
		return false, ReasonBadPINFormat
	}
	ok, err := util.CompareArgon2idKey(pin, o.PINSalt, o.PINParams, o.PINHash)
	if err != nil {
		a.logger.Error("pin comparison failed", "officer_id", o.ID, "error", err)
		return false, ReasonWrongPIN
	}
	if !ok {
		a.logDenied(o.ID, ch, ReasonWrongPIN)
		return false, ReasonWrongPIN
	}
	if err := a.registry.TouchChannel(o.ID, ch); err != nil {
		// Attribution metadata only; the login itself stands.
		a.logger.Warn("recording channel activity failed", "officer_id", o.ID, "error", err)
	}
	a.logger.Info("officer authenticated", "officer_id", o.ID, "channel", ch)
	return true, ""
}

func (a *Authenticator) logDenied(officerID string, ch session.Channel, reason string) {
	a.logger.Warn("authentication denied",
		"officer_id", officerID, "channel", ch, "reason", reason)
}
