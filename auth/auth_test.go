package auth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/storage/memory"
)

func testAuth(t *testing.T) (*Authenticator, *directory.Registry, *directory.Officer) {
	t.Helper()
	reg := directory.NewRegistry(memory.NewRepository())
	o, err := reg.Enroll(directory.EnrollParams{
		Badge:    "UPF-1024",
		FullName: "J. Okello",
		Phone:    "+256700111222",
		PIN:      "1234",
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(reg, logger), reg, o
}

func TestIdentifyKnownOfficer(t *testing.T) {
	a, _, want := testAuth(t)

	o, err := a.Identify("+256 700 111 222", session.ChannelUSSD)
	require.NoError(t, err)
	assert.Equal(t, want.ID, o.ID)
}

func TestIdentifyUnknownPhone(t *testing.T) {
	a, _, _ := testAuth(t)

	_, err := a.Identify("+256700999999", session.ChannelUSSD)
	assert.ErrorIs(t, err, ErrUnknownOfficer)
}

func TestIdentifyInactiveOfficer(t *testing.T) {
	a, reg, o := testAuth(t)
	o.Active = false
	require.NoError(t, reg.Save(o))

	_, err := a.Identify(o.Phone, session.ChannelUSSD)
	assert.ErrorIs(t, err, ErrUnknownOfficer)
}

func TestIdentifyChannelDisabled(t *testing.T) {
	a, reg, o := testAuth(t)
	o.WhatsAppEnabled = false
	require.NoError(t, reg.Save(o))

	_, err := a.Identify(o.Phone, session.ChannelWhatsApp)
	assert.ErrorIs(t, err, ErrUnknownOfficer)

	// The other channel is unaffected.
	_, err = a.Identify(o.Phone, session.ChannelUSSD)
	assert.NoError(t, err)
}

func TestVerifyPIN(t *testing.T) {
	a, _, o := testAuth(t)

	ok, reason := a.VerifyPIN(o, "1234", session.ChannelUSSD)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = a.VerifyPIN(o, "9999", session.ChannelUSSD)
	assert.False(t, ok)
	assert.Equal(t, ReasonWrongPIN, reason)
}

func TestVerifyPINRejectsMalformedBeforeHashing(t *testing.T) {
	a, _, o := testAuth(t)

	for _, pin := range []string{"", "12", "12345", "12a4", "١٢٣٤"} {
		ok, reason := a.VerifyPIN(o, pin, session.ChannelUSSD)
		assert.False(t, ok, "pin %q", pin)
		assert.Equal(t, ReasonBadPINFormat, reason, "pin %q", pin)
	}
}

func TestVerifyPINLockedOfficer(t *testing.T) {
	a, _, o := testAuth(t)
	o.LockedUntil = time.Now().Add(time.Hour)

	ok, reason := a.VerifyPIN(o, "1234", session.ChannelUSSD)
	assert.False(t, ok, "correct PIN must still fail while locked")
	assert.Equal(t, ReasonLocked, reason)
}

func TestVerifyPINRecordsChannelActivity(t *testing.T) {
	a, reg, o := testAuth(t)

	ok, _ := a.VerifyPIN(o, "1234", session.ChannelWhatsApp)
	require.True(t, ok)

	fresh, err := reg.Get(o.ID)
	require.NoError(t, err)
	assert.False(t, fresh.LastWhatsAppAt.IsZero())
	assert.True(t, fresh.LastUSSDAt.IsZero())
}
