package signals

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coordinates address a cell of the patch the way spreadsheets do: a 1-based
// row number followed by 1-based column letters, e.g. "1a", "3z", "12ab".
type Coordinates struct {
	Row int
	Col int
}

var ErrBadCoordinates = errors.New("invalid coordinates")

// ParseCoordinates parses the text form produced by Coordinates.String.
func ParseCoordinates(s string) (Coordinates, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	digits, letters := s[:i], s[i:]
	if digits == "" || letters == "" || digits[0] == '0' {
		return Coordinates{}, fmt.Errorf("%w: %q", ErrBadCoordinates, s)
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return Coordinates{}, fmt.Errorf("%w: %q", ErrBadCoordinates, s)
	}
	col := 0
	for _, c := range letters {
		if c < 'a' || c > 'z' {
			return Coordinates{}, fmt.Errorf("%w: %q", ErrBadCoordinates, s)
		}
		col = col*26 + int(c-'a') + 1
		if col < 0 {
			return Coordinates{}, fmt.Errorf("%w: column overflow in %q", ErrBadCoordinates, s)
		}
	}
	return Coordinates{Row: row, Col: col}, nil
}

// MustParseCoordinates is like ParseCoordinates but panics on error.
func MustParseCoordinates(s string) Coordinates {
	c, err := ParseCoordinates(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ColumnName converts a 1-based column index to its letters.
func ColumnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append(b, byte('a'+col%26))
		col /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func (c Coordinates) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(c.Row))
	sb.WriteString(ColumnName(c.Col))
	return sb.String()
}

// Valid reports whether both row and column are at least 1.
func (c Coordinates) Valid() bool {
	return c.Row >= 1 && c.Col >= 1
}

// Compare orders coordinates row first, then column.
func (c Coordinates) Compare(o Coordinates) int {
	if c.Row != o.Row {
		return cmp.Compare(c.Row, o.Row)
	}
	return cmp.Compare(c.Col, o.Col)
}

func (c Coordinates) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Coordinates) UnmarshalText(text []byte) error {
	p, err := ParseCoordinates(string(text))
	if err != nil {
		return err
	}
	*c = p
	return nil
}
