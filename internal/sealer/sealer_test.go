package sealer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := New("encryption-key", "signing-key")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"email":"ada@example.com"}`), []byte("order-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "ada@example.com")

	opened, err := s.Open(sealed, []byte("order-1"))
	require.NoError(t, err)
	assert.Equal(t, `{"email":"ada@example.com"}`, string(opened))
}

func TestSealer_RejectsOtherRecord(t *testing.T) {
	s, err := New("encryption-key", "signing-key")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"), []byte("order-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("order-2"))
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestSealer_RejectsTamperingAndWrongKey(t *testing.T) {
	s, err := New("encryption-key", "signing-key")
	require.NoError(t, err)
	other, err := New("encryption-key", "another-signing-key")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"), nil)
	require.NoError(t, err)

	_, err = other.Open(sealed, nil)
	assert.ErrorIs(t, err, ErrCiphertext)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed, nil)
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = s.Open([]byte("short"), nil)
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("", "signing-key")
	assert.Error(t, err)
}
