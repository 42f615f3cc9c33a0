package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmensah/fieldcheck/internal/util"
	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/storage"
)

const (
	namespace      = "directory"
	officerType    = "OFFICER"
	phoneIndexType = "PHONE"
)

var (
	// ErrNotFound is returned when no officer matches the lookup.
	ErrNotFound = errors.New("officer not found")
	// ErrPhoneRegistered is returned when enrolling a phone number that
	// already belongs to another officer.
	ErrPhoneRegistered = errors.New("phone number already enrolled")
	// ErrInvalidPIN is returned when an enrollment PIN is not four digits.
	ErrInvalidPIN = errors.New("pin must be exactly 4 digits")
)

// Registry stores officer records in a storage.Repository, with a secondary
// phone-number index for the channel handlers' lookup-by-sender path.
type Registry struct {
	repo storage.Repository
}

// NewRegistry creates an officer registry on the given repository.
func NewRegistry(repo storage.Repository) *Registry {
	return &Registry{repo: repo}
}

// EnrollParams are the inputs for enrolling a new officer.
type EnrollParams struct {
	Badge           string
	FullName        string
	Station         string
	Rank            string
	Phone           string
	PIN             string
	DailyQueryLimit int
}

// Enroll creates a new active officer with both channels enabled and the
// Quick PIN hashed under a fresh salt.
func (r *Registry) Enroll(p EnrollParams) (*Officer, error) {
	if !ValidPINFormat(p.PIN) {
		return nil, ErrInvalidPIN
	}
	phone := NormalizePhone(p.Phone)
	if phone == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	// A storage failure here must abort: treating it as "phone free" could
	// enroll the same number twice.
	switch _, err := r.FindByPhone(phone); {
	case err == nil:
		return nil, ErrPhoneRegistered
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("checking phone index: %w", err)
	}

	salt, err := util.RandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("generating pin salt: %w", err)
	}
	params := util.DefaultArgon2idParams()
	hash, err := util.DeriveArgon2idKey(p.PIN, salt, params)
	if err != nil {
		return nil, fmt.Errorf("hashing pin: %w", err)
	}

	o := &Officer{
		ID:              uuid.NewString(),
		Badge:           p.Badge,
		FullName:        p.FullName,
		Station:         p.Station,
		Rank:            p.Rank,
		Phone:           phone,
		PINHash:         hash,
		PINSalt:         salt,
		PINParams:       params,
		Active:          true,
		USSDEnabled:     true,
		WhatsAppEnabled: true,
		DailyQueryLimit: p.DailyQueryLimit,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.Save(o); err != nil {
		return nil, err
	}
	return o, nil
}

// Save persists the officer record and its phone index entry.
func (r *Registry) Save(o *Officer) error {
	if err := storage.PutJSON(r.repo, namespace, officerType, o.ID, o); err != nil {
		return fmt.Errorf("persisting officer: %w", err)
	}
	idx := struct {
		OfficerID string `json:"officer_id"`
	}{OfficerID: o.ID}
	if err := storage.PutJSON(r.repo, namespace, phoneIndexType, o.Phone, idx); err != nil {
		return fmt.Errorf("persisting phone index: %w", err)
	}
	return nil
}

// Get loads an officer by ID.
func (r *Registry) Get(id string) (*Officer, error) {
	var o Officer
	if err := storage.GetJSON(r.repo, namespace, officerType, id, &o); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindByPhone resolves a sender phone number to an officer record.
func (r *Registry) FindByPhone(phone string) (*Officer, error) {
	var idx struct {
		OfficerID string `json:"officer_id"`
	}
	err := storage.GetJSON(r.repo, namespace, phoneIndexType, NormalizePhone(phone), &idx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.Get(idx.OfficerID)
}

// TouchChannel records a successful authentication on the given channel.
func (r *Registry) TouchChannel(id string, ch session.Channel) error {
	o, err := r.Get(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	switch ch {
	case session.ChannelUSSD:
		o.LastUSSDAt = now
	case session.ChannelWhatsApp:
		o.LastWhatsAppAt = now
	}
	return r.Save(o)
}

// List returns all enrolled officer IDs.
func (r *Registry) List() ([]string, error) {
	return r.repo.List(namespace, officerType)
}

// NormalizePhone strips spacing and punctuation from a phone number so that
// gateway variants of the same E.164 number index identically.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(phone) {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '+' && b.Len() == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}
