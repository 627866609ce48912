package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte { return bytes.Repeat([]byte{b}, KeySize) }

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey(1))
	require.NoError(t, err)

	a, err := s.Seal(`{"cgpa":"8.78"}`)
	require.NoError(t, err)
	b, err := s.Seal(`{"cgpa":"8.78"}`)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces must differ")

	plain, err := s.Open(a)
	require.NoError(t, err)
	assert.Equal(t, `{"cgpa":"8.78"}`, plain)
}

func TestOpenRejects(t *testing.T) {
	s, err := NewSealer(testKey(1))
	require.NoError(t, err)
	other, err := NewSealer(testKey(2))
	require.NoError(t, err)

	sealed, err := s.Seal("grades")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = s.Open("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = s.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKeyFromBase64(t *testing.T) {
	key, err := KeyFromBase64(base64.StdEncoding.EncodeToString(testKey(7)))
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = KeyFromBase64(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewSealer([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
