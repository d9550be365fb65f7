package signals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
)

func TestCoordinatesRoundTrip(t *testing.T) {
	tests := []struct {
		c    signals.Coordinates
		text string
	}{
		{signals.Coordinates{Row: 1, Col: 1}, "1a"},
		{signals.Coordinates{Row: 1, Col: 2}, "1b"},
		{signals.Coordinates{Row: 1, Col: 26}, "1z"},
		{signals.Coordinates{Row: 1, Col: 27}, "1aa"},
		{signals.Coordinates{Row: 1, Col: 52}, "1az"},
		{signals.Coordinates{Row: 1, Col: 702}, "1zz"},
		{signals.Coordinates{Row: 1234, Col: 1234}, "1234aul"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.c.String())
			c, err := signals.ParseCoordinates(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.c, c)
		})
	}
	for row := 1; row < 5; row++ {
		for col := 1; col < 2000; col++ {
			c := signals.Coordinates{Row: row, Col: col}
			p, err := signals.ParseCoordinates(c.String())
			require.NoError(t, err)
			require.Equal(t, c, p)
		}
	}
}

func TestParseCoordinatesErrors(t *testing.T) {
	for _, s := range []string{"", "a", "1", "0a", "1A", "a1", "1a1", "-1a", "1 a", "01a", "007b", "00a"} {
		_, err := signals.ParseCoordinates(s)
		assert.ErrorIs(t, err, signals.ErrBadCoordinates, "parsing %q", s)
	}
}

func TestCoordinatesCompare(t *testing.T) {
	a := signals.MustParseCoordinates("1z")
	b := signals.MustParseCoordinates("1aa")
	c := signals.MustParseCoordinates("2a")
	assert.Negative(t, a.Compare(b))
	assert.Negative(t, b.Compare(c))
	assert.Positive(t, c.Compare(a))
	assert.Zero(t, a.Compare(a))
}
