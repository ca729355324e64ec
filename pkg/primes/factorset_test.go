package primes_test

import (
	"encoding/json"
	"testing"

	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorSet(t *testing.T) {
	s := primes.NewFactorSet(5, 2, 3, 2)

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(2))
	assert.False(t, s.Has(7))
	assert.Equal(t, []uint64{2, 3, 5}, s.Sorted())
	assert.Equal(t, "{2, 3, 5}", s.String())
	assert.True(t, s.Equal(primes.NewFactorSet(3, 5, 2)))
	assert.False(t, s.Equal(primes.NewFactorSet(2, 3)))
	assert.Equal(t, "{}", primes.NewFactorSet().String())
}

func TestFactorSet_JSON(t *testing.T) {
	data, err := json.Marshal(primes.NewFactorSet(6700417, 3, 641))
	require.NoError(t, err)
	assert.JSONEq(t, `["3", "641", "6700417"]`, string(data))

	data, err = json.Marshal(primes.NewFactorSet(18446744073709551557))
	require.NoError(t, err)
	assert.Equal(t, `["18446744073709551557"]`, string(data), "large factors keep full precision")

	data, err = json.Marshal(primes.NewFactorSet())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestFactorSet_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []uint64
	}{
		{name: "strings", input: `["7", "11", "7", "18446744073709551557"]`, want: []uint64{7, 11, 18446744073709551557}},
		{name: "numbers", input: `[7, 11, 7]`, want: []uint64{7, 11}},
		{name: "mixed", input: `[2, "3"]`, want: []uint64{2, 3}},
		{name: "empty", input: `[]`, want: []uint64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var decoded primes.FactorSet
			require.NoError(t, json.Unmarshal([]byte(tc.input), &decoded))
			assert.Equal(t, tc.want, decoded.Sorted())
		})
	}

	for _, bad := range []string{`["-1"]`, `[1.5]`, `["abc"]`, `["18446744073709551616"]`, `{}`} {
		var decoded primes.FactorSet
		assert.Error(t, json.Unmarshal([]byte(bad), &decoded), bad)
	}
}
