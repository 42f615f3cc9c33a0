package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAndCompare(t *testing.T) {
	salt, err := RandomBytes(16)
	require.NoError(t, err)
	params := DefaultArgon2idParams()

	key, err := DeriveArgon2idKey("1234", salt, params)
	require.NoError(t, err)
	require.Len(t, key, 32)

	ok, err := CompareArgon2idKey("1234", salt, params, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompareArgon2idKey("4321", salt, params, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDifferentSaltsDifferentKeys(t *testing.T) {
	params := DefaultArgon2idParams()
	s1, _ := RandomBytes(16)
	s2, _ := RandomBytes(16)

	k1, err := DeriveArgon2idKey("1234", s1, params)
	require.NoError(t, err)
	k2, err := DeriveArgon2idKey("1234", s2, params)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestRejectsUnexpectedKeyLength(t *testing.T) {
	params := DefaultArgon2idParams()
	params.KeyLen = 16
	_, err := DeriveArgon2idKey("1234", []byte("salt"), params)
	assert.Error(t, err)
}
