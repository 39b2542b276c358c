package cache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). Vectors of different
// dimension, and zero vectors, score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	norm := math.Sqrt(normA) * math.Sqrt(normB)
	if norm == 0 {
		return 0
	}
	return dot / norm
}

// roundScore rounds to 4 decimal places for reporting.
func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// EncodeVector serializes v as little-endian float32 bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector parses bytes written by EncodeVector. A positive dimension is
// checked against the payload length.
func DecodeVector(b []byte, dimension int) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if dimension > 0 && n != dimension {
		return nil, fmt.Errorf("vector blob has %d values, expected %d", n, dimension)
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
