package primes

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/rs/zerolog"
)

// SeedNumbers are queried once when an Oracle is built so that the first real
// lookups of small values are already cached.
var SeedNumbers = []uint64{0, 1, 2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31}

// OracleConfig configures the in-process primality cache.
type OracleConfig struct {
	// CacheSize bounds the in-process cache with LRU eviction. Zero keeps every
	// answer for the lifetime of the process.
	CacheSize int `yaml:"cache_size"`
	// SkipPrewarm disables querying SeedNumbers at construction.
	SkipPrewarm bool `yaml:"skip_prewarm"`
}

// Oracle answers primality queries through a cache chain whose source of truth
// is trial division.
//
// The trial division shortcut rejects anything divisible by 2 or 3 and accepts
// anything with no divisor of the form 6k±1 up to its square root. As a result
// the Oracle reports 0, 2 and 3 as not prime and 1 as prime. Factorizer works
// around all four.
type Oracle struct {
	cache  cache.Fetcher[uint64, bool]
	logger zerolog.Logger
}

// NewOracle builds an Oracle. source is the layer behind the in-process cache,
// typically a cache.RedisCache wrapping TrialDivisionSource; nil means
// TrialDivisionSource directly.
func NewOracle(ctx context.Context, cfg OracleConfig, source cache.Fetcher[uint64, bool], logger zerolog.Logger) (*Oracle, error) {
	if source == nil {
		source = TrialDivisionSource()
	}

	var l1 cache.Fetcher[uint64, bool]
	if cfg.CacheSize > 0 {
		lru, err := cache.NewInMemoryLRUCache[uint64, bool](cfg.CacheSize, source)
		if err != nil {
			return nil, fmt.Errorf("failed to create primality cache: %w", err)
		}
		l1 = lru
	} else {
		l1 = cache.NewInMemoryCache[uint64, bool](source)
	}

	o := &Oracle{
		cache:  l1,
		logger: logger.With().Str("component", "PrimalityOracle").Logger(),
	}
	if !cfg.SkipPrewarm {
		o.Prewarm(ctx, SeedNumbers...)
	}
	return o, nil
}

// TrialDivisionSource exposes the uncached primality test as a cache source.
func TrialDivisionSource() cache.Fetcher[uint64, bool] {
	return cache.FetcherFunc[uint64, bool](func(_ context.Context, n uint64) (bool, error) {
		return isPrime(n), nil
	})
}

// IsPrime reports whether number is prime, memoizing the answer. It never
// fails: if a cache layer errors the answer is computed directly.
func (o *Oracle) IsPrime(ctx context.Context, number uint64) bool {
	result, err := o.cache.Fetch(ctx, number)
	if err != nil {
		o.logger.Warn().Err(err).Uint64("number", number).Msg("Primality cache failed, computing directly.")
		return isPrime(number)
	}
	return result
}

// Prewarm queries each number once to populate the cache.
func (o *Oracle) Prewarm(ctx context.Context, numbers ...uint64) {
	for _, n := range numbers {
		o.IsPrime(ctx, n)
	}
	o.logger.Debug().Int("count", len(numbers)).Msg("Primality cache prewarmed.")
}

// Cached returns the in-process cached answer for number, if there is one.
func (o *Oracle) Cached(number uint64) (prime, ok bool) {
	if p, isPeeker := o.cache.(interface{ Peek(uint64) (bool, bool) }); isPeeker {
		return p.Peek(number)
	}
	return false, false
}

// CacheLen reports how many answers the in-process cache holds.
func (o *Oracle) CacheLen() int {
	if l, ok := o.cache.(interface{ Len() int }); ok {
		return l.Len()
	}
	return 0
}

// Close releases the cache chain, including any remote layer.
func (o *Oracle) Close() error {
	return o.cache.Close()
}

func isPrime(number uint64) bool {
	if number%2 == 0 || number%3 == 0 {
		return false
	}
	for i := uint64(5); withinRoot(i, number); i += 6 {
		if number%i == 0 || number%(i+2) == 0 {
			return false
		}
	}
	return true
}

// withinRoot reports g*g <= n without computing g*g, which wraps for g >= 2^32.
// g must be non-zero.
func withinRoot(g, n uint64) bool {
	return g <= n/g
}
