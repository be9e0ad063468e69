package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.NotEmpty(t, id.String())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, "input %q", s)
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	prev := idx.NewAt(at)
	for range 100 {
		next := idx.NewAt(at)
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	require.WithinDuration(t, tm, idx.NewAt(tm).Time(), time.Millisecond)
	require.True(t, idx.ID("bogus").Time().IsZero())
}

func TestAccountIDs(t *testing.T) {
	a, err := idx.NewAccountID()
	require.NoError(t, err)
	b, err := idx.NewAccountID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	parsed, err := idx.ParseAccountID(a)
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	_, err = idx.ParseAccountID("nope")
	require.ErrorIs(t, err, idx.ErrInvalid)
}
