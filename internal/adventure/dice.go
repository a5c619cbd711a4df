package adventure

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidNotation is returned for strings that are not <N>d<M>[+/-K].
var ErrInvalidNotation = errors.New("invalid dice notation")

// Bounds on a single roll.
const (
	MaxDice  = 100
	MaxSides = 1000
)

var notationPattern = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// Rand is the random source the roller draws from.
type Rand interface {
	IntN(n int) int
}

// Notation is a parsed dice expression.
type Notation struct {
	Count    int
	Sides    int
	Modifier int
}

// String renders the notation the way players write it.
func (n Notation) String() string {
	switch {
	case n.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", n.Count, n.Sides, n.Modifier)
	case n.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", n.Count, n.Sides, n.Modifier)
	default:
		return fmt.Sprintf("%dd%d", n.Count, n.Sides)
	}
}

// ParseNotation parses s. Surrounding whitespace and case are ignored.
func ParseNotation(s string) (Notation, error) {
	m := notationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Notation{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return Notation{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Notation{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil {
			return Notation{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
		}
	}

	if count < 1 || count > MaxDice {
		return Notation{}, fmt.Errorf("%w: dice count must be between 1 and %d", ErrInvalidNotation, MaxDice)
	}
	if sides < 1 || sides > MaxSides {
		return Notation{}, fmt.Errorf("%w: sides must be between 1 and %d", ErrInvalidNotation, MaxSides)
	}

	return Notation{Count: count, Sides: sides, Modifier: modifier}, nil
}

// Roll is the outcome of rolling a notation. Invalid notations produce a
// Roll with Error set instead of a panic.
type Roll struct {
	Notation    string `json:"notation"`
	Rolls       []int  `json:"rolls,omitempty"`
	Modifier    int    `json:"modifier"`
	Total       int    `json:"total"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// OK reports whether the roll succeeded.
func (r Roll) OK() bool {
	return r.Error == ""
}

// RollDice parses notation and rolls it with rng. On invalid notation the
// returned Roll carries the error text and err wraps ErrInvalidNotation.
func RollDice(rng Rand, notation string) (Roll, error) {
	n, err := ParseNotation(notation)
	if err != nil {
		return Roll{Notation: notation, Error: "Invalid dice notation"}, err
	}
	return n.Roll(rng), nil
}

// Roll draws Count dice uniformly from [1, Sides].
func (n Notation) Roll(rng Rand) Roll {
	rolls := make([]int, n.Count)
	total := n.Modifier
	for i := range rolls {
		rolls[i] = rng.IntN(n.Sides) + 1
		total += rolls[i]
	}
	return Roll{
		Notation:    n.String(),
		Rolls:       rolls,
		Modifier:    n.Modifier,
		Total:       total,
		Description: fmt.Sprintf("Rolled %s: %s = %d", n, formatRolls(rolls), total),
	}
}

func formatRolls(rolls []int) string {
	parts := make([]string, len(rolls))
	for i, r := range rolls {
		parts[i] = strconv.Itoa(r)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
