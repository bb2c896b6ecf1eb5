package query

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/errors"
)

func encodeVector(vec []float32) string {
	raw := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecodeQueryEmbedding_RoundTrip(t *testing.T) {
	in := []float32{1, -0.5, 0.25, 3.5}
	emb, decErr := decodeQueryEmbedding(encodeVector(in), 4, "Model-A")
	require.Nil(t, decErr)
	require.NotNil(t, emb)
	assert.Equal(t, in, emb.Vector)
	assert.Equal(t, 4, emb.Dims)
	assert.Equal(t, "model-a", emb.Model)
}

func TestDecodeQueryEmbedding_AbsentIsNil(t *testing.T) {
	emb, decErr := decodeQueryEmbedding("", 0, "")
	assert.Nil(t, emb)
	assert.Nil(t, decErr)
}

func TestDecodeQueryEmbedding_BadBase64(t *testing.T) {
	_, decErr := decodeQueryEmbedding("!!!not-base64!!!", 0, "")
	require.NotNil(t, decErr)
	assert.Equal(t, errors.CodeInvalidQueryEmbedding, decErr.Code)
}

func TestDecodeQueryEmbedding_UnalignedBytes(t *testing.T) {
	_, decErr := decodeQueryEmbedding(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), 0, "")
	require.NotNil(t, decErr)
	assert.Equal(t, errors.CodeInvalidQueryEmbedding, decErr.Code)
}

func TestDecodeQueryEmbedding_DimsMismatch(t *testing.T) {
	_, decErr := decodeQueryEmbedding(encodeVector([]float32{1, 2}), 3, "")
	require.NotNil(t, decErr)
	assert.Equal(t, errors.CodeInvalidQueryEmbeddingDims, decErr.Code)
}

func TestDecodeQueryEmbedding_DimsBounds(t *testing.T) {
	// One over the cap.
	_, decErr := decodeQueryEmbedding(encodeVector(make([]float32, maxEmbeddingDims+1)), 0, "")
	require.NotNil(t, decErr)
	assert.Equal(t, errors.CodeInvalidQueryEmbeddingDims, decErr.Code)

	// Exactly at the cap is fine.
	emb, decErr := decodeQueryEmbedding(encodeVector(make([]float32, maxEmbeddingDims)), 0, "")
	assert.Nil(t, decErr)
	assert.Len(t, emb.Vector, maxEmbeddingDims)
}
