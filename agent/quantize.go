package agent

import "github.com/shopspring/decimal"

// Source is the random generator behind a Quantizer. *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Quantizer draws single-decimal prices and volumes from a range.
type Quantizer struct {
	src Source
}

// NewQuantizer draws from src.
func NewQuantizer(src Source) *Quantizer {
	return &Quantizer{src: src}
}

var one = decimal.NewFromInt(1)

// Quantize returns a uniformly drawn value in [min, max] truncated to one
// decimal digit. It returns zero when min is negative or the range is
// narrower than one unit.
func (q *Quantizer) Quantize(min, max decimal.Decimal) decimal.Decimal {
	if min.Sign() < 0 || max.Sub(min).LessThan(one) {
		return decimal.Zero
	}

	raw := min.Add(max.Sub(min).Mul(decimal.NewFromFloat(q.src.Float64())))
	v := raw.Truncate(1)
	if v.LessThan(min) {
		// min itself is off the 0.1 grid; the next grid point still fits since max-min >= 1.
		v = min.RoundCeil(1)
	}
	return v
}
