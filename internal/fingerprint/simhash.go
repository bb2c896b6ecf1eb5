// Package fingerprint computes 64-bit SimHash fingerprints over token bags
// and splits them into four 16-bit bands for LSH candidate retrieval.
package fingerprint

import (
	"hash/fnv"
	"math/bits"
)

// KindSimHash64 labels the current fingerprint algorithm. The producer and
// every consumer (storage, similar-to candidate queries) use this constant.
const KindSimHash64 = "simhash-64"

// BandCount is the number of 16-bit bands a fingerprint splits into.
const BandCount = 4

// Fingerprint is a 64-bit SimHash value plus its four band keys.
type Fingerprint struct {
	Hash  uint64
	Bands [BandCount]uint16
}

// Service computes fingerprints. It is stateless and safe for concurrent
// use.
type Service struct{}

// NewService returns a fingerprint service.
func NewService() *Service {
	return &Service{}
}

// Compute builds the SimHash-64 fingerprint of a token bag. The result is
// independent of token order and is the zero fingerprint for an empty bag.
func (s *Service) Compute(tokens []string) Fingerprint {
	if len(tokens) == 0 {
		return Fingerprint{}
	}

	var acc [64]int
	for _, t := range tokens {
		h := hashToken(t)
		for b := 0; b < 64; b++ {
			if (h>>uint(b))&1 == 1 {
				acc[b]++
			} else {
				acc[b]--
			}
		}
	}

	var hash uint64
	for b := 0; b < 64; b++ {
		// Ties (acc == 0) resolve to 0.
		if acc[b] > 0 {
			hash |= 1 << uint(b)
		}
	}

	return Fingerprint{Hash: hash, Bands: SplitBands(hash)}
}

// SplitBands slices a fingerprint into its four 16-bit band keys, band i
// being bits [16i, 16i+16).
func SplitBands(hash uint64) [BandCount]uint16 {
	var bands [BandCount]uint16
	for i := 0; i < BandCount; i++ {
		bands[i] = uint16((hash >> (16 * uint(i))) & 0xFFFF)
	}
	return bands
}

// JoinBands reassembles a fingerprint from its band keys.
func JoinBands(bands [BandCount]uint16) uint64 {
	var hash uint64
	for i := 0; i < BandCount; i++ {
		hash |= uint64(bands[i]) << (16 * uint(i))
	}
	return hash
}

// HammingDistance counts differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// hashToken produces a stable 64-bit hash of a token (FNV-1a).
func hashToken(t string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t))
	return h.Sum64()
}
