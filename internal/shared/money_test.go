package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	require.Equal(t, int64(118000), ToCents(1180))
	require.Equal(t, int64(1999), ToCents(19.99))
	require.Equal(t, int64(10), ToCents(0.1))
	require.Equal(t, int64(0), ToCents(0))
}

func TestLineCents(t *testing.T) {
	// The price is fixed to cents before multiplying, so 3 x 19.99 is
	// exactly 5997 and never a truncated float product.
	require.Equal(t, int64(5997), LineCents(3, 19.99))
	require.Equal(t, int64(330), LineCents(3, 1.10))
	// Fractional quantities round half-up at the cent.
	require.Equal(t, int64(25), LineCents(2.5, 0.10))
	require.Equal(t, int64(1), LineCents(0.5, 0.01))
	require.Equal(t, int64(0), LineCents(0, 19.99))
}

func TestFromCentsRoundTrip(t *testing.T) {
	require.Equal(t, 1180.00, FromCents(118000))
	require.Equal(t, 0.01, FromCents(1))
	require.Equal(t, int64(118000), ToCents(FromCents(118000)))
}

func TestParseAmount(t *testing.T) {
	cents, err := ParseAmount("1180.00")
	require.NoError(t, err)
	require.Equal(t, int64(118000), cents)

	_, err = ParseAmount("1.005")
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseAmount("not-a-number")
	require.ErrorIs(t, err, ErrValidation)
}
