package hash

import (
	"bytes"
	"encoding/gob"
	mrand "math/rand"
)

// SRP (sign-random-projections, a.k.a. SimHash) is the hash family for
// cosine similarity: the probability two vectors receive the same bit
// equals 1 - theta/pi, monotone in cosine similarity between them.
type SRP struct {
	dim         int
	k           int
	hyperplanes [][]float32 // k hyperplanes, each of length dim
}

// NewSRP constructs an SRP hasher with k random unit-normal hyperplanes
// of dimension dim, seeded by r.
func NewSRP(k, dim int, r *mrand.Rand) (*SRP, error) {
	if k <= 0 || dim <= 0 {
		return nil, ErrInvalidParam
	}
	hp := make([][]float32, k)
	for i := range hp {
		row := make([]float32, dim)
		for j := range row {
			row[j] = float32(r.NormFloat64())
		}
		hp[i] = row
	}
	return &SRP{dim: dim, k: k, hyperplanes: hp}, nil
}

// Len implements VecHash.
func (s *SRP) Len() int { return s.k }

func (s *SRP) hashVec(v []float32) (Hash, error) {
	if len(v) != s.dim {
		return nil, ErrDimension
	}
	out := make(Hash, s.k)
	for i, plane := range s.hyperplanes {
		var dot float32
		for j, vj := range v {
			dot += vj * plane[j]
		}
		if dot > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

// HashQuery implements VecHash.
func (s *SRP) HashQuery(v []float32) (Hash, error) { return s.hashVec(v) }

// HashPut implements VecHash. Identical to HashQuery for SRP.
func (s *SRP) HashPut(v []float32) (Hash, error) { return s.hashVec(v) }

// srpState mirrors SRP's unexported fields for gob serialization.
type srpState struct {
	Dim         int
	K           int
	Hyperplanes [][]float32
}

// GobEncode implements gob.GobEncoder.
func (s *SRP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(srpState{Dim: s.dim, K: s.k, Hyperplanes: s.hyperplanes})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (s *SRP) GobDecode(data []byte) error {
	var st srpState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	s.dim, s.k, s.hyperplanes = st.Dim, st.K, st.Hyperplanes
	return nil
}
