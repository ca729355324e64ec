// Package primes finds the distinct prime factors of 64-bit unsigned integers,
// memoizing primality answers across calls.
//
// The package-level IsPrime and FindPrimeFactors share one process-wide
// Factorizer with an unbounded in-memory cache, prewarmed with SeedNumbers.
// Services that need a bounded or shared cache build their own Oracle.
package primes

import (
	"context"

	"github.com/rs/zerolog"
)

var defaultFactorizer = newDefaultFactorizer()

func newDefaultFactorizer() *Factorizer {
	oracle, err := NewOracle(context.Background(), OracleConfig{}, nil, zerolog.Nop())
	if err != nil {
		// Only a bounded cache can fail to build.
		panic(err)
	}
	f, err := NewFactorizer(oracle)
	if err != nil {
		panic(err)
	}
	return f
}

// Default returns the process-wide Factorizer.
func Default() *Factorizer {
	return defaultFactorizer
}

// IsPrime reports whether number is prime using the process-wide cache.
// See Oracle for the answers given to 0, 1, 2 and 3.
func IsPrime(number uint64) bool {
	return defaultFactorizer.oracle.IsPrime(context.Background(), number)
}

// FindPrimeFactors returns the distinct prime factors of number using the
// process-wide cache.
func FindPrimeFactors(number uint64) FactorSet {
	return defaultFactorizer.FindPrimeFactors(context.Background(), number)
}
