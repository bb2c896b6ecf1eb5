package query

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"

	"github.com/codelens-dev/codelens/internal/errors"
)

// maxEmbeddingDims bounds accepted query vectors.
const maxEmbeddingDims = 4096

// queryEmbedding is a decoded and validated caller-supplied vector.
type queryEmbedding struct {
	Vector []float32
	Dims   int
	Model  string // normalised lowercase, may be empty
}

// decodeQueryEmbedding parses the wire format: base64 of little-endian
// float32s. Returns (nil, nil) when no embedding was supplied.
func decodeQueryEmbedding(b64 string, dims int, model string) (*queryEmbedding, *errors.Error) {
	if b64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidQueryEmbedding, err)
	}
	if len(raw)%4 != 0 {
		return nil, errors.Newf(errors.CodeInvalidQueryEmbedding,
			"embedding byte length %d is not a multiple of 4", len(raw))
	}
	n := len(raw) / 4
	if dims != 0 && dims != n {
		return nil, errors.Newf(errors.CodeInvalidQueryEmbeddingDims,
			"declared dims %d but payload holds %d floats", dims, n)
	}
	if n == 0 || n > maxEmbeddingDims {
		return nil, errors.Newf(errors.CodeInvalidQueryEmbeddingDims,
			"dims %d outside (0, %d]", n, maxEmbeddingDims)
	}

	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return &queryEmbedding{
		Vector: vec,
		Dims:   n,
		Model:  strings.ToLower(strings.TrimSpace(model)),
	}, nil
}
