package primes

import (
	"context"
	"errors"
)

// Factorizer computes the distinct prime factors of a number by trial division,
// asking the Oracle first so that primes return immediately.
type Factorizer struct {
	oracle *Oracle
}

// NewFactorizer creates a Factorizer backed by oracle.
func NewFactorizer(oracle *Oracle) (*Factorizer, error) {
	if oracle == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	return &Factorizer{oracle: oracle}, nil
}

// Oracle returns the primality oracle the Factorizer consults.
func (f *Factorizer) Oracle() *Oracle {
	return f.oracle
}

// FindPrimeFactors returns the distinct prime factors of number.
//
// Numbers up to 2 are returned as their own single factor, so 0 yields {0}
// and 1 yields {1}. 3 is misreported by the Oracle and is found by the
// division by 3 below instead.
func (f *Factorizer) FindPrimeFactors(ctx context.Context, number uint64) FactorSet {
	if number <= 2 || f.oracle.IsPrime(ctx, number) {
		return NewFactorSet(number)
	}

	factors := make(FactorSet)
	for number%2 == 0 {
		factors.Add(2)
		number /= 2
	}
	for number%3 == 0 {
		factors.Add(3)
		number /= 3
	}

	// number shrinks as factors are divided out, so the bound tightens as we go.
	for g := uint64(5); withinRoot(g, number); g += 6 {
		for number%g == 0 {
			factors.Add(g)
			number /= g
		}
		for number%(g+2) == 0 {
			factors.Add(g + 2)
			number /= g + 2
		}
	}

	// Whatever is left has no factor up to its square root.
	if number > 1 {
		factors.Add(number)
	}
	return factors
}
