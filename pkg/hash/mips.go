package hash

import (
	"bytes"
	"encoding/gob"
	"math"
	mrand "math/rand"
)

// MIPS reduces maximum-inner-product search to L2 nearest-neighbor search
// via an asymmetric transform (asymmetric LSH): the corpus (put) side and
// the query side are transformed differently before being handed to a
// shared, higher-dimensional L2 hasher.
type MIPS struct {
	dim int
	u   float32
	m   int
	max float32 // M: max ||x|| over the fitted corpus, 0 until Fit is called
	l2  *L2
}

// NewMIPS constructs a MIPS hasher. r, k seed the wrapped L2 hasher of
// dimension dim+m; u and m are the asymmetric-transform parameters.
func NewMIPS(dim int, r, u float32, m, k int, rnd *mrand.Rand) (*MIPS, error) {
	if dim <= 0 || m < 1 || u <= 0 || u >= 1 {
		return nil, ErrInvalidParam
	}
	l2, err := NewL2(dim+m, r, k, rnd)
	if err != nil {
		return nil, err
	}
	return &MIPS{dim: dim, u: u, m: m, l2: l2}, nil
}

// Len implements VecHash.
func (mp *MIPS) Len() int { return mp.l2.Len() }

// Fit sets M = max_i ||x_i|| over the given corpus (a single vector or a
// representative sample); required before TransformPut/HashPut.
func (mp *MIPS) Fit(vectors [][]float32) {
	var maxNorm float32
	for _, x := range vectors {
		n := l2Norm(x)
		if n > maxNorm {
			maxNorm = n
		}
	}
	mp.max = maxNorm
}

// TransformPut produces x' = [x*U/M, ||x*U/M||^2, ||x*U/M||^4, ..., ||.||^(2m)],
// dimension dim+m. Fails with ErrNotFitted if Fit has not set M.
func (mp *MIPS) TransformPut(x []float32) ([]float32, error) {
	if len(x) != mp.dim {
		return nil, ErrDimension
	}
	if mp.max == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float32, 0, len(x)+mp.m)
	for _, xi := range x {
		out = append(out, xi/mp.max*mp.u)
	}
	normSq := l2Norm(out)
	normSq *= normSq
	for i := 1; i <= mp.m; i++ {
		out = append(out, float32(math.Pow(float64(normSq), float64(i))))
	}
	return out, nil
}

// TransformQuery produces q' = [q/||q||, 1/2, 1/2, ..., 1/2], dimension dim+m.
func (mp *MIPS) TransformQuery(x []float32) ([]float32, error) {
	if len(x) != mp.dim {
		return nil, ErrDimension
	}
	norm := l2Norm(x)
	out := make([]float32, 0, len(x)+mp.m)
	for _, xi := range x {
		out = append(out, xi/norm)
	}
	for i := 0; i < mp.m; i++ {
		out = append(out, 0.5)
	}
	return out, nil
}

// HashQuery implements VecHash: transforms via TransformQuery then
// delegates to the wrapped L2 hasher.
func (mp *MIPS) HashQuery(v []float32) (Hash, error) {
	q, err := mp.TransformQuery(v)
	if err != nil {
		return nil, err
	}
	return mp.l2.HashQuery(q)
}

// HashPut implements VecHash: transforms via TransformPut then
// delegates to the wrapped L2 hasher. L2's query and put paths are
// identical, so either serves here.
func (mp *MIPS) HashPut(v []float32) (Hash, error) {
	p, err := mp.TransformPut(v)
	if err != nil {
		return nil, err
	}
	return mp.l2.HashQuery(p)
}

// mipsState mirrors MIPS's unexported fields for gob serialization.
type mipsState struct {
	Dim int
	U   float32
	M   int
	Max float32
	L2  *L2
}

// GobEncode implements gob.GobEncoder.
func (mp *MIPS) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(mipsState{Dim: mp.dim, U: mp.u, M: mp.m, Max: mp.max, L2: mp.l2})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (mp *MIPS) GobDecode(data []byte) error {
	var st mipsState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	mp.dim, mp.u, mp.m, mp.max, mp.l2 = st.Dim, st.U, st.M, st.Max, st.L2
	return nil
}

func l2Norm(v []float32) float32 {
	var sum float32
	for _, vi := range v {
		sum += vi * vi
	}
	return float32(math.Sqrt(float64(sum)))
}
