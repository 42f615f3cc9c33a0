// Package directory is the officer registry: enrollment, lookup by phone
// number, Quick-PIN hashes, and per-channel enablement flags.
package directory

import (
	"time"

	"github.com/jmensah/fieldcheck/internal/util"
	"github.com/jmensah/fieldcheck/session"
)

// DefaultDailyQueryLimit applies when neither the service configuration
// nor the officer record sets a daily budget.
const DefaultDailyQueryLimit = 50

// Officer is an enrolled field officer. The Quick PIN is stored as an
// argon2id hash with its salt and parameters; the raw PIN is never
// persisted or logged.
type Officer struct {
	ID       string `json:"id"`
	Badge    string `json:"badge"`
	FullName string `json:"full_name"`
	Station  string `json:"station"`
	Rank     string `json:"rank"`
	Phone    string `json:"phone"` // E.164

	PINHash   []byte              `json:"pin_hash"`
	PINSalt   []byte              `json:"pin_salt"`
	PINParams util.Argon2idParams `json:"pin_params"`

	Active          bool      `json:"active"`
	USSDEnabled     bool      `json:"ussd_enabled"`
	WhatsAppEnabled bool      `json:"whatsapp_enabled"`
	LockedUntil     time.Time `json:"locked_until,omitempty"`

	// DailyQueryLimit overrides the global default when > 0.
	DailyQueryLimit int `json:"daily_query_limit,omitempty"`

	LastUSSDAt     time.Time `json:"last_ussd_at,omitempty"`
	LastWhatsAppAt time.Time `json:"last_whatsapp_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChannelEnabled reports whether the officer may use the given channel.
func (o *Officer) ChannelEnabled(ch session.Channel) bool {
	switch ch {
	case session.ChannelUSSD:
		return o.USSDEnabled
	case session.ChannelWhatsApp:
		return o.WhatsAppEnabled
	default:
		return false
	}
}

// Locked reports whether an account lockout is in force.
func (o *Officer) Locked(now time.Time) bool {
	return now.Before(o.LockedUntil)
}

// ValidPINFormat reports whether pin is exactly four ASCII digits. Anything
// else is rejected before the hash function is ever invoked.
func ValidPINFormat(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
