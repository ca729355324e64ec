package factorservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/rs/zerolog"
)

var errNilFactorizer = errors.New("factorizer cannot be nil")

// ResultStore looks up the factorization of a number.
type ResultStore = cache.Fetcher[uint64, FactorDocument]

// FactorDocument is a stored factorization. Numbers are decimal strings
// because Firestore integers are signed 64-bit.
type FactorDocument struct {
	Number     string    `firestore:"number" json:"number"`
	Factors    []string  `firestore:"factors" json:"factors"`
	ComputedAt time.Time `firestore:"computed_at" json:"computed_at"`
}

// NewFactorDocument renders a factor set as a document.
func NewFactorDocument(number uint64, factors primes.FactorSet, computedAt time.Time) FactorDocument {
	sorted := factors.Sorted()
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = strconv.FormatUint(f, 10)
	}
	return FactorDocument{
		Number:     strconv.FormatUint(number, 10),
		Factors:    out,
		ComputedAt: computedAt.UTC(),
	}
}

// FactorSet parses the stored factors.
func (d FactorDocument) FactorSet() (primes.FactorSet, error) {
	set := primes.NewFactorSet()
	for _, f := range d.Factors {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt factor %q in document for %s: %w", f, d.Number, err)
		}
		set.Add(v)
	}
	return set, nil
}

// FactorizerSource computes documents with f. It is the source of truth
// behind every ResultStore.
func FactorizerSource(f *primes.Factorizer) cache.Fetcher[uint64, FactorDocument] {
	return cache.FetcherFunc[uint64, FactorDocument](func(ctx context.Context, number uint64) (FactorDocument, error) {
		return NewFactorDocument(number, f.FindPrimeFactors(ctx, number), time.Now()), nil
	})
}

// NewInMemoryResultStore keeps up to size factorizations in an LRU in front of f.
func NewInMemoryResultStore(size int, f *primes.Factorizer, logger zerolog.Logger) (*cache.CacheFallbackFetcher[uint64, FactorDocument], error) {
	if f == nil {
		return nil, errNilFactorizer
	}
	lru, err := cache.NewInMemoryLRUCache[uint64, FactorDocument](size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return cache.NewCacheFallbackFetcher[uint64, FactorDocument](nil, lru, FactorizerSource(f), logger)
}

// NewFirestoreResultStore persists factorizations in a Firestore collection,
// one document per number, computing misses with f.
func NewFirestoreResultStore(
	cfg *cache.FallbackConfig,
	fsCfg *cache.FirestoreConfig,
	client *firestore.Client,
	f *primes.Factorizer,
	logger zerolog.Logger,
) (*cache.CacheFallbackFetcher[uint64, FactorDocument], error) {
	if f == nil {
		return nil, errNilFactorizer
	}
	store, err := cache.NewFirestoreCache[uint64, FactorDocument](fsCfg, client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore result store: %w", err)
	}
	return cache.NewCacheFallbackFetcher[uint64, FactorDocument](cfg, store, FactorizerSource(f), logger)
}
