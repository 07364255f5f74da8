package timing

import (
	"fmt"
	"math"
	"math/bits"
)

// FreqInHz is an integer clock frequency.
type FreqInHz uint64

// Defines the unit of frequency.
const (
	Hz  FreqInHz = 1
	KHz FreqInHz = 1e3
	MHz FreqInHz = 1e6
)

// A RationalClock expresses a component clock as Num/Den of the base clock.
// Local cycle counts are floor(base * Num / Den); converting a local deadline
// back to base cycles rounds up, so a deadline is never reached early.
type RationalClock struct {
	Num uint64
	Den uint64
}

// NewRationalClock creates a clock ratio. Both terms must be positive.
func NewRationalClock(num, den uint64) RationalClock {
	if num == 0 || den == 0 {
		panic(fmt.Sprintf("timing: invalid clock ratio %d/%d", num, den))
	}

	return RationalClock{Num: num, Den: den}
}

// OneToOne returns the ratio of a component that runs on the base clock.
func OneToOne() RationalClock {
	return RationalClock{Num: 1, Den: 1}
}

// RatioOf returns the ratio between a component frequency and the base
// frequency, reduced to lowest terms.
func RatioOf(component, base FreqInHz) RationalClock {
	if component == 0 || base == 0 {
		panic(fmt.Sprintf(
			"timing: frequency must be greater than zero, got %d/%d",
			component, base))
	}

	g := gcd(uint64(component), uint64(base))

	return RationalClock{
		Num: uint64(component) / g,
		Den: uint64(base) / g,
	}
}

// IsValid tells whether both terms are positive.
func (c RationalClock) IsValid() bool {
	return c.Num > 0 && c.Den > 0
}

// IsOneToOne tells whether the clock runs at the base rate.
func (c RationalClock) IsOneToOne() bool {
	return c.Num == c.Den
}

// ToLocal converts a base cycle count into local cycles, truncating.
func (c RationalClock) ToLocal(base uint64) uint64 {
	if c.Num == c.Den {
		return base
	}

	return mulDiv(base, c.Num, c.Den, 0)
}

// ToBase converts a local cycle count into base cycles, rounding up.
func (c RationalClock) ToBase(local uint64) uint64 {
	if c.Num == c.Den {
		return local
	}

	return mulDiv(local, c.Den, c.Num, c.Num-1)
}

func (c RationalClock) String() string {
	return fmt.Sprintf("%d/%d", c.Num, c.Den)
}

// mulDiv computes (a*b + bias) / d with a 128-bit intermediate, saturating at
// MaxUint64.
func mulDiv(a, b, d, bias uint64) uint64 {
	hi, lo := bits.Mul64(a, b)

	var carry uint64
	lo, carry = bits.Add64(lo, bias, 0)
	hi += carry

	if hi >= d {
		return math.MaxUint64
	}

	q, _ := bits.Div64(hi, lo, d)

	return q
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}
