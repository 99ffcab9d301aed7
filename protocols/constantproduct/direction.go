package constantproduct

import "fmt"

// Direction selects which reserve receives the input of a swap.
type Direction uint8

const (
	// AtoB pays token A into the pool and takes token B out.
	AtoB Direction = iota + 1
	// BtoA pays token B into the pool and takes token A out.
	BtoA
)

func (d Direction) String() string {
	switch d {
	case AtoB:
		return "AtoB"
	case BtoA:
		return "BtoA"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the two recognised directions.
func (d Direction) Valid() bool {
	return d == AtoB || d == BtoA
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	switch d {
	case AtoB:
		return BtoA
	case BtoA:
		return AtoB
	default:
		return d
	}
}

// ParseDirection maps "AtoB" and "BtoA" to their Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "AtoB":
		return AtoB, nil
	case "BtoA":
		return BtoA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// MarshalText lets a Direction appear as "AtoB"/"BtoA" in JSON and YAML.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
