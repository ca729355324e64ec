package factorservice

import (
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/primes"
)

// FactorResult is the answer to a FactorRequest, published as JSON.
type FactorResult struct {
	RequestID string           `json:"request_id"`
	Number    uint64           `json:"number,string"`
	Factors   primes.FactorSet `json:"factors"`
	// Prime reports whether Number is itself prime, i.e. its only factor.
	Prime      bool      `json:"prime"`
	ComputedAt time.Time `json:"computed_at"`
	Elapsed    int64     `json:"elapsed_us"`
}

// isPrimeFactorization reports whether factors shows number to be prime.
func isPrimeFactorization(number uint64, factors primes.FactorSet) bool {
	return number >= 2 && factors.Len() == 1 && factors.Has(number)
}
