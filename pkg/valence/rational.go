package valence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rational is an exact average oxidation state: the summed per-site states
// of an element divided by its atom count.
//
// Rationals are always stored in normalized form (lowest terms, positive
// denominator), so structural equality is value equality.
//
//	Fe3O4: Fe = 8/3
//	Sr7La3Fe10O30: Fe = 37/10
type Rational struct {
	Num int // numerator
	Den int // denominator (> 0)
}

// NewRational returns num/den in normalized form.
// Panics if den is zero.
//
//	NewRational(6, 8) → 3/4
//	NewRational(6, -8) → -3/4
//	NewRational(0, 5) → 0
func NewRational(num, den int) Rational {
	if den == 0 {
		panic("rational: division by zero")
	}
	if num == 0 {
		return Rational{Num: 0, Den: 1}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	return Rational{Num: num / g, Den: den / g}
}

// Int returns the rational n/1.
func Int(n int) Rational { return Rational{Num: n, Den: 1} }

func (r Rational) norm() Rational {
	if r.Den == 0 {
		// zero value
		return Rational{Num: 0, Den: 1}
	}
	return r
}

// Add returns r + other.
func (r Rational) Add(other Rational) Rational {
	r, other = r.norm(), other.norm()
	return NewRational(r.Num*other.Den+other.Num*r.Den, r.Den*other.Den)
}

// MulInt returns r·k.
func (r Rational) MulInt(k int) Rational {
	r = r.norm()
	return NewRational(r.Num*k, r.Den)
}

// Neg returns -r.
func (r Rational) Neg() Rational {
	r = r.norm()
	return Rational{Num: -r.Num, Den: r.Den}
}

// IsZero reports whether r is zero.
func (r Rational) IsZero() bool { return r.Num == 0 }

// IsInt reports whether r has no fractional part.
func (r Rational) IsInt() bool { return r.norm().Den == 1 }

// Abs returns |r|.
func (r Rational) Abs() Rational {
	if r.Num < 0 {
		return r.Neg()
	}
	return r.norm()
}

// Float64 returns the floating-point approximation of r.
func (r Rational) Float64() float64 {
	r = r.norm()
	return float64(r.Num) / float64(r.Den)
}

// Cmp compares r and other and returns -1, 0 or +1.
func (r Rational) Cmp(other Rational) int {
	r, other = r.norm(), other.norm()
	lhs, rhs := r.Num*other.Den, other.Num*r.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	}
	return 0
}

// String formats r as "num/den", or "num" for integers.
//
//	Rational{3, 4}.String() → "3/4"
//	Rational{6, 1}.String() → "6"
//	Rational{-5, 2}.String() → "-5/2"
func (r Rational) String() string {
	r = r.norm()
	if r.Den == 1 {
		return strconv.Itoa(r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MarshalText implements encoding.TextMarshaler using String.
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses "num/den" or "num".
func (r *Rational) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return fmt.Errorf("rational %q: %w", s, err)
	}
	d, err := strconv.Atoi(den)
	if err != nil || d == 0 {
		return fmt.Errorf("rational %q: bad denominator", s)
	}
	*r = NewRational(n, d)
	return nil
}

// FromFloat returns the best rational approximation of f with a
// denominator of at most maxDenominator, using continued fractions.
// The second return reports whether the approximation is within tol of f.
//
//	FromFloat(1.9, 1000, 1e-9) → 19/10, true
//	FromFloat(0.3333333, 100, 1e-6) → 1/3, true
func FromFloat(f float64, maxDenominator int, tol float64) (Rational, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || maxDenominator < 1 {
		return Rational{Num: 0, Den: 1}, false
	}
	sign := 1
	if f < 0 {
		sign, f = -1, -f
	}

	// convergents h/k
	h1, h0 := int(f), 1
	k1, k0 := 1, 0
	rem := f - math.Floor(f)
	for math.Abs(float64(h1)/float64(k1)-f) > tol && rem > 1e-12 {
		x := 1 / rem
		a := int(x)
		rem = x - float64(a)
		h, k := a*h1+h0, a*k1+k0
		if k > maxDenominator {
			break
		}
		h1, h0 = h, h1
		k1, k0 = k, k1
	}
	r := NewRational(sign*h1, k1)
	return r, math.Abs(float64(h1)/float64(k1)-f) <= tol
}

// gcd computes the greatest common divisor of two non-negative integers.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm computes the least common multiple of two positive integers.
func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
