package utils

import (
	"math/big"

	"golang.org/x/exp/constraints"
)

// ConstrainIntegerToBounds takes a provided big integer and inclusive minimum/maximum bounds and wraps the integer
// into that range, simulating overflow and underflow. Returns a new integer.
func ConstrainIntegerToBounds(b *big.Int, min *big.Int, max *big.Int) *big.Int {
	if b.Cmp(min) >= 0 && b.Cmp(max) <= 0 {
		return new(big.Int).Set(b)
	}

	// Wrap (b - min) into [0, range) and shift back up by min.
	boundingRange := new(big.Int).Add(new(big.Int).Sub(max, min), big.NewInt(1))
	offset := new(big.Int).Sub(b, min)
	offset.Mod(offset, boundingRange)
	return offset.Add(offset, min)
}

// ConstrainIntegerToBitLength wraps the provided integer into the range of an integer of the given signedness and
// bit length.
func ConstrainIntegerToBitLength(b *big.Int, signed bool, bitLength int) *big.Int {
	min, max := GetIntegerConstraints(signed, bitLength)
	return ConstrainIntegerToBounds(b, min, max)
}

// GetIntegerConstraints returns the inclusive minimum and maximum values of an integer with the given signedness
// and bit length.
func GetIntegerConstraints(signed bool, bitLength int) (*big.Int, *big.Int) {
	if signed {
		max := new(big.Int).Lsh(big.NewInt(1), uint(bitLength-1))
		min := new(big.Int).Neg(max)
		return min, max.Sub(max, big.NewInt(1))
	}
	max := new(big.Int).Lsh(big.NewInt(1), uint(bitLength))
	return big.NewInt(0), max.Sub(max, big.NewInt(1))
}

// SaturatingSub returns x - y, or zero if y is greater than x.
func SaturatingSub[T constraints.Unsigned](x T, y T) T {
	if y > x {
		return 0
	}
	return x - y
}
