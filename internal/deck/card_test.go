package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardEqualityIgnoresTrump(t *testing.T) {
	t.Parallel()

	plain := NewCard(Diamonds, Ace, false)
	trump := NewCard(Diamonds, Ace, true)

	assert.True(t, plain.Equal(trump))
	assert.True(t, trump.Equal(plain))
	assert.Equal(t, plain.Key(), trump.Key())

	other := NewCard(Clubs, Ace, false)
	assert.False(t, plain.Equal(other))
}

func TestRankPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rank   Rank
		points int
	}{
		{Ace, 11},
		{Ten, 10},
		{King, 4},
		{Queen, 3},
		{Jack, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.points, tt.rank.Points(), tt.rank.String())
	}

	// Point values hold regardless of trump status.
	assert.Equal(t, 3, NewCard(Clubs, Queen, true).Points())
	assert.Equal(t, 3, NewCard(Clubs, Queen, false).Points())
}

func TestParseSuitRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Suit{Clubs, Spades, Hearts, Diamonds} {
		parsed, err := ParseSuit(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseSuit("swords")
	assert.Error(t, err)
}

func TestParseRankRoundTrip(t *testing.T) {
	t.Parallel()

	for _, r := range []Rank{Jack, Queen, King, Ten, Ace} {
		parsed, err := ParseRank(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRank("nine")
	assert.Error(t, err)
}

func TestCardString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hearts ten", NewCard(Hearts, Ten, true).String())
	assert.Equal(t, "clubs ace", NewCard(Clubs, Ace, false).String())
}
