// Package rational encodes decimal degrees as the exact fractions EXIF stores.
package rational

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// ErrOverflow is returned when a value cannot be represented as an int64 fraction.
var ErrOverflow = errors.New("rational overflow")

// Rational is a numerator/denominator pair.
type Rational struct {
	Num int64
	Den int64
}

// Float evaluates the fraction.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ToRational returns the smallest fraction equal to the shortest decimal
// representation of x, so 48.34312 becomes 604289/12500 rather than a
// binary approximation.
func ToRational(x float64) (Rational, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Rational{}, fmt.Errorf("%w: %v", ErrOverflow, x)
	}

	s := strconv.FormatFloat(x, 'f', -1, 64)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rational{}, fmt.Errorf("parse %q", s)
	}

	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return Rational{}, fmt.Errorf("%w: %s", ErrOverflow, s)
	}
	return Rational{Num: r.Num().Int64(), Den: r.Denom().Int64()}, nil
}

// DMS is an angle split into degrees, minutes and seconds with a hemisphere reference.
type DMS struct {
	Degrees int
	Minutes int
	Seconds float64
	Ref     string
}

// DegreesToDMS splits v into degrees, minutes and seconds (rounded to 5 decimals).
// Negative values get neg as reference, positive values pos, zero an empty reference.
func DegreesToDMS(v float64, neg, pos string) DMS {
	d := DMS{}
	switch {
	case v < 0:
		d.Ref = neg
	case v > 0:
		d.Ref = pos
	}

	abs := math.Abs(v)
	d.Degrees = int(abs)
	m := (abs - float64(d.Degrees)) * 60
	d.Minutes = int(m)
	d.Seconds = Round((m-float64(d.Minutes))*60, 5)

	// Rounding can push seconds up to a full minute.
	if d.Seconds >= 60 {
		d.Seconds -= 60
		d.Minutes++
	}
	if d.Minutes >= 60 {
		d.Minutes -= 60
		d.Degrees++
	}
	return d
}

// Decimal reassembles the unsigned angle.
func (d DMS) Decimal() float64 {
	return float64(d.Degrees) + float64(d.Minutes)/60 + d.Seconds/3600
}

// Rationals encodes degrees, minutes and seconds as exact fractions.
func (d DMS) Rationals() ([3]Rational, error) {
	var out [3]Rational
	for i, v := range []float64{float64(d.Degrees), float64(d.Minutes), d.Seconds} {
		r, err := ToRational(v)
		if err != nil {
			return out, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
