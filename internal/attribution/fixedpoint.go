package attribution

import "math/big"

// Scale is the 1e18 fixed-point unit every ratio is expressed in.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Ratio returns floor(num * Scale / den), capped at Scale. A non-positive
// numerator or denominator yields zero.
func Ratio(num, den *big.Int) *big.Int {
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 {
		return new(big.Int)
	}
	if num.Cmp(den) >= 0 {
		return new(big.Int).Set(Scale)
	}
	r := new(big.Int).Mul(num, Scale)
	return r.Quo(r, den)
}

// ApplyRatio returns floor(amount * ratio / Scale), bounded to [0, amount].
func ApplyRatio(amount, ratio *big.Int) *big.Int {
	if amount == nil || ratio == nil || amount.Sign() <= 0 || ratio.Sign() <= 0 {
		return new(big.Int)
	}
	if ratio.Cmp(Scale) >= 0 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, ratio)
	return out.Quo(out, Scale)
}

// Proportion returns floor(amount * num / den), bounded to [0, amount]. The
// product is taken before the division.
func Proportion(amount, num, den *big.Int) *big.Int {
	if amount == nil || num == nil || den == nil || amount.Sign() <= 0 || num.Sign() <= 0 || den.Sign() <= 0 {
		return new(big.Int)
	}
	if num.Cmp(den) >= 0 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, num)
	return out.Quo(out, den)
}

// SubClamped returns max(a - b, 0) and the part of b that could not be
// subtracted.
func SubClamped(a, b *big.Int) (*big.Int, *big.Int) {
	out := new(big.Int).Sub(orZero(a), orZero(b))
	if out.Sign() >= 0 {
		return out, new(big.Int)
	}
	residue := new(big.Int).Neg(out)
	return new(big.Int), residue
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
