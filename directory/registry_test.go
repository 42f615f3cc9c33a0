package directory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/storage"
	"github.com/jmensah/fieldcheck/storage/memory"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(memory.NewRepository())
}

func enrollTestOfficer(t *testing.T, r *Registry) *Officer {
	t.Helper()
	o, err := r.Enroll(EnrollParams{
		Badge:    "UPF-1024",
		FullName: "J. Okello",
		Station:  "Central",
		Rank:     "Sergeant",
		Phone:    "+256700111222",
		PIN:      "1234",
	})
	require.NoError(t, err)
	return o
}

func TestEnrollAndFindByPhone(t *testing.T) {
	r := testRegistry(t)
	o := enrollTestOfficer(t, r)

	require.NotEmpty(t, o.ID)
	assert.True(t, o.Active)
	assert.True(t, o.USSDEnabled)
	assert.True(t, o.WhatsAppEnabled)
	assert.NotEmpty(t, o.PINHash)
	assert.NotEmpty(t, o.PINSalt)

	got, err := r.FindByPhone("+256700111222")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestFindByPhoneNormalizes(t *testing.T) {
	r := testRegistry(t)
	o := enrollTestOfficer(t, r)

	got, err := r.FindByPhone(" +256 700 111-222 ")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestFindByPhoneUnknown(t *testing.T) {
	r := testRegistry(t)
	_, err := r.FindByPhone("+256799000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrollRejectsDuplicatePhone(t *testing.T) {
	r := testRegistry(t)
	enrollTestOfficer(t, r)

	_, err := r.Enroll(EnrollParams{
		Badge: "UPF-2048", FullName: "A. Mugisha",
		Phone: "+256700111222", PIN: "5678",
	})
	assert.ErrorIs(t, err, ErrPhoneRegistered)
}

// faultyRepo fails every read, standing in for a broken backend.
type faultyRepo struct {
	storage.Repository
}

func (f *faultyRepo) Get(namespace, recordType, recordID string) (*storage.Record, error) {
	return nil, errors.New("backend unavailable")
}

func TestEnrollAbortsOnPhoneIndexFailure(t *testing.T) {
	r := NewRegistry(&faultyRepo{Repository: memory.NewRepository()})

	_, err := r.Enroll(EnrollParams{
		Badge: "UPF-1024", FullName: "J. Okello",
		Phone: "+256700111222", PIN: "1234",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPhoneRegistered,
		"a storage failure must not be read as the phone being taken or free")
	assert.Contains(t, err.Error(), "checking phone index")
}

func TestEnrollRejectsBadPIN(t *testing.T) {
	r := testRegistry(t)
	for _, pin := range []string{"", "123", "12345", "12a4", "abcd", "12 4"} {
		_, err := r.Enroll(EnrollParams{Phone: "+256700999888", PIN: pin})
		assert.ErrorIs(t, err, ErrInvalidPIN, "pin %q", pin)
	}
}

func TestValidPINFormat(t *testing.T) {
	assert.True(t, ValidPINFormat("0000"))
	assert.True(t, ValidPINFormat("9876"))
	assert.False(t, ValidPINFormat("987"))
	assert.False(t, ValidPINFormat("98765"))
	assert.False(t, ValidPINFormat("98a5"))
	assert.False(t, ValidPINFormat(""))
}

func TestTouchChannel(t *testing.T) {
	r := testRegistry(t)
	o := enrollTestOfficer(t, r)
	require.True(t, o.LastUSSDAt.IsZero())

	require.NoError(t, r.TouchChannel(o.ID, session.ChannelUSSD))
	got, err := r.Get(o.ID)
	require.NoError(t, err)
	assert.False(t, got.LastUSSDAt.IsZero())
	assert.True(t, got.LastWhatsAppAt.IsZero())
}
