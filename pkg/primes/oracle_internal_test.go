package primes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithinRoot(t *testing.T) {
	testCases := []struct {
		name     string
		g, n     uint64
		expected bool
	}{
		{name: "exact square", g: 5, n: 25, expected: true},
		{name: "just below square", g: 5, n: 24, expected: false},
		{name: "one", g: 5, n: 1, expected: false},
		// 2^32 * 2^32 wraps to 0 in 64 bits; the comparison must still say no.
		{name: "g at 2^32 against max", g: 1 << 32, n: math.MaxUint64, expected: false},
		{name: "largest root of max", g: 1<<32 - 1, n: math.MaxUint64, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, withinRoot(tc.g, tc.n))
		})
	}

	var g uint64 = 1 << 32
	assert.Zero(t, g*g, "the naive product wraps")
}

func TestIsPrime_Uncached(t *testing.T) {
	assert.False(t, isPrime(0))
	assert.True(t, isPrime(1))
	assert.False(t, isPrime(2))
	assert.False(t, isPrime(3))
	assert.True(t, isPrime(7919))
	assert.False(t, isPrime(7917))
}
