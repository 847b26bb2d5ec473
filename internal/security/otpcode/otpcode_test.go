package otpcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const secret = "unit-test-secret-0123456789"

func TestGenerate(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := Generate(6)
		require.NoError(t, err)
		require.Len(t, c, 6)
		require.Empty(t, strings.Trim(c, "0123456789"))
	}

	_, err := Generate(0)
	require.Error(t, err)
}

func TestHasher_RoundTrip(t *testing.T) {
	h, err := NewHasher(secret)
	require.NoError(t, err)

	sum := h.Hash("123456", "+919876543210")
	require.Len(t, sum, 64)
	require.NotContains(t, sum, "123456")

	require.True(t, h.Verify("123456", "+919876543210", sum))
	require.False(t, h.Verify("123457", "+919876543210", sum))
	// mismo código, otro visitante
	require.False(t, h.Verify("123456", "+919876543211", sum))
	require.False(t, h.Verify("123456", "+919876543210", "not-hex"))
}

func TestHasher_KeyDependsOnSecret(t *testing.T) {
	a, err := NewHasher(secret)
	require.NoError(t, err)
	b, err := NewHasher(secret + "-rotated")
	require.NoError(t, err)
	require.NotEqual(t, a.Hash("111111", "+14155550100"), b.Hash("111111", "+14155550100"))
}

func TestNewHasher_WeakSecret(t *testing.T) {
	_, err := NewHasher("short")
	require.ErrorIs(t, err, ErrWeakSecret)
}
