package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMilvusStoreValidation(t *testing.T) {
	_, err := NewMilvusStore(MilvusOptions{}, &embedderAdapter{funcs: stubFuncs()})
	assert.Error(t, err)

	_, err = NewMilvusStore(MilvusOptions{Dim: 26}, nil)
	assert.Error(t, err)
}

func TestL2Similarity(t *testing.T) {
	assert.Equal(t, 1.0, l2Similarity(0))
	assert.Equal(t, 0.5, l2Similarity(1))
	// Closer vectors always score higher.
	assert.Greater(t, l2Similarity(0.1), l2Similarity(2.0))
}

func TestMetadataRoundTrip(t *testing.T) {
	metadata := map[string]any{
		"source": "doc.txt",
		"page":   float64(3),
	}

	decoded := decodeMetadata(encodeMetadata(metadata))
	require.Equal(t, "doc.txt", decoded["source"])
	require.Equal(t, float64(3), decoded["page"])

	assert.Equal(t, "{}", encodeMetadata(nil))
	assert.Empty(t, decodeMetadata(""))
	assert.Empty(t, decodeMetadata("not json"))
}

func TestMatchesFilter(t *testing.T) {
	metadata := map[string]any{"source": "doc.txt", "page": 3}

	assert.True(t, matchesFilter(metadata, map[string]any{"source": "doc.txt"}))
	assert.True(t, matchesFilter(metadata, map[string]any{"page": 3}))
	// Numeric values match across JSON decode types.
	assert.True(t, matchesFilter(map[string]any{"page": float64(3)}, map[string]any{"page": 3}))
	assert.False(t, matchesFilter(metadata, map[string]any{"source": "other.txt"}))
	assert.False(t, matchesFilter(metadata, map[string]any{"missing": "x"}))
}

func TestTokenCount(t *testing.T) {
	if n := tokenCount("hello world"); n > 0 {
		assert.LessOrEqual(t, n, 4)
	}
	assert.Equal(t, 0, tokenCount(""))
}
