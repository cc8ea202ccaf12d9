package internaldefs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterDefsAreUniqueAndPrefixed(t *testing.T) {
	names := make(map[string]struct{}, len(CounterDefs))
	ids := make(map[uint16]struct{}, len(CounterDefs))
	for _, def := range CounterDefs {
		require.True(t, strings.HasPrefix(def.Name, "authcore_"), def.Name)
		require.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		require.NotEmpty(t, def.Help)

		_, dup := names[def.Name]
		require.False(t, dup, "duplicate name %s", def.Name)
		names[def.Name] = struct{}{}

		_, dup = ids[uint16(def.ID)]
		require.False(t, dup, "duplicate id for %s", def.Name)
		ids[uint16(def.ID)] = struct{}{}
	}
}

func TestBucketHelpers(t *testing.T) {
	require.Len(t, HistogramBoundSuffix, len(HistogramBounds))

	n := NormalizeBuckets([]uint64{1, 2, 3})
	require.Equal(t, [8]uint64{1, 2, 3}, n)

	n = NormalizeBuckets([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 9})
	require.Equal(t, [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}, CumulativeBuckets(n))
}
