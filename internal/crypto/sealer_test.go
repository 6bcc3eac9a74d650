package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newSealer(t *testing.T) *Sealer {
	t.Helper()
	id, err := GenerateIdentity()
	require.NoError(t, err)
	s, err := NewSealer(id)
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newSealer(t)
	for _, pt := range []string{"", "hunter2", "пароль with spaces"} {
		ct, err := s.Encrypt(pt)
		require.NoError(t, err)
		require.NotEqual(t, pt, ct)
		got, err := s.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, pt, got)
	}
}

func TestSealer_CiphertextIsRandomized(t *testing.T) {
	s := newSealer(t)
	a, err := s.Encrypt("same")
	require.NoError(t, err)
	b, err := s.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSealer_WrongIdentityFails(t *testing.T) {
	ct, err := newSealer(t).Encrypt("secret")
	require.NoError(t, err)
	_, err = newSealer(t).Decrypt(ct)
	require.Error(t, err)

	_, err = newSealer(t).Decrypt("%%%not-base64")
	require.Error(t, err)
}

func TestNewSealer_RejectsGarbage(t *testing.T) {
	_, err := NewSealer("AGE-SECRET-KEY-NOPE")
	require.Error(t, err)
}
