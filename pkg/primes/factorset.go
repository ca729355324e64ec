package primes

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FactorSet is an unordered set of distinct factors.
type FactorSet map[uint64]struct{}

// NewFactorSet returns a set holding values.
func NewFactorSet(values ...uint64) FactorSet {
	s := make(FactorSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v. Adding a present value is a no-op.
func (s FactorSet) Add(v uint64) {
	s[v] = struct{}{}
}

// Has reports whether v is in the set.
func (s FactorSet) Has(v uint64) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of elements.
func (s FactorSet) Len() int {
	return len(s)
}

// Sorted returns the elements in ascending order.
func (s FactorSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold the same elements.
func (s FactorSet) Equal(other FactorSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// String renders the set as "{2, 3, 5}" in ascending order.
func (s FactorSet) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the set as an ascending array of decimal strings, so
// factors above 2^53 survive JSON consumers that parse numbers as doubles.
func (s FactorSet) MarshalJSON() ([]byte, error) {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, v := range sorted {
		out[i] = strconv.FormatUint(v, 10)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of decimal strings or plain numbers,
// dropping duplicates.
func (s *FactorSet) UnmarshalJSON(data []byte) error {
	var values []json.Number
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	set := make(FactorSet, len(values))
	for _, raw := range values {
		v, err := strconv.ParseUint(raw.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid factor %q: %w", raw, err)
		}
		set.Add(v)
	}
	*s = set
	return nil
}
