package hash

import (
	"bytes"
	"encoding/gob"
	"math"
	mrand "math/rand"
)

// L2 is the Euclidean-distance hash family: h(v) = floor((A*v + b) / r),
// component-wise. Collision probability decreases with ||p-q||/r.
type L2 struct {
	dim int
	k   int
	r   float32
	a   [][]float32 // k x dim
	b   []float32   // k, uniform in [0, r)
}

// NewL2 constructs an L2 hasher: k projections of dimension dim, slot
// width r, seeded by rnd (the RNG, not to be confused with the field r).
func NewL2(dim int, r float32, k int, rnd *mrand.Rand) (*L2, error) {
	if k <= 0 || dim <= 0 || r <= 0 {
		return nil, ErrInvalidParam
	}
	a := make([][]float32, k)
	for i := range a {
		row := make([]float32, dim)
		for j := range row {
			row[j] = float32(rnd.NormFloat64())
		}
		a[i] = row
	}
	b := make([]float32, k)
	for i := range b {
		b[i] = float32(rnd.Float64()) * r
	}
	return &L2{dim: dim, k: k, r: r, a: a, b: b}, nil
}

// Len implements VecHash.
func (l *L2) Len() int { return l.k }

// projections returns (A*v + b) for every hash component, the shared
// numerator behind both the hash and the multi-probe boundary distances.
func (l *L2) projections(v []float32) ([]float32, error) {
	if len(v) != l.dim {
		return nil, ErrDimension
	}
	out := make([]float32, l.k)
	for i := 0; i < l.k; i++ {
		var dot float32
		row := l.a[i]
		for j, vj := range v {
			dot += vj * row[j]
		}
		out[i] = dot + l.b[i]
	}
	return out, nil
}

func (l *L2) hashVec(v []float32) (Hash, error) {
	proj, err := l.projections(v)
	if err != nil {
		return nil, err
	}
	out := make(Hash, l.k)
	for i, p := range proj {
		out[i] = Primitive(math.Floor(float64(p / l.r)))
	}
	return out, nil
}

// HashQuery implements VecHash.
func (l *L2) HashQuery(v []float32) (Hash, error) { return l.hashVec(v) }

// HashPut implements VecHash. Identical to HashQuery for L2.
func (l *L2) HashPut(v []float32) (Hash, error) { return l.hashVec(v) }

// DistanceToBound implements hash.QueryDirectedProber. It returns, per
// projection, the distance from q's projected value to the lower
// (xiMinus) and upper (xiPlus) boundary of the slot identified by hash
// (or q's own hash, if hash is nil). xiMinus + xiPlus == r always.
func (l *L2) DistanceToBound(q []float32, hsh Hash) (xiMinus, xiPlus []float32, err error) {
	f, err := l.projections(q)
	if err != nil {
		return nil, nil, err
	}

	var slot []float32
	if hsh == nil {
		slot = make([]float32, l.k)
		for i, p := range f {
			slot[i] = float32(math.Floor(float64(p / l.r)))
		}
	} else {
		if len(hsh) != l.k {
			return nil, nil, ErrDimension
		}
		slot = make([]float32, l.k)
		for i, hv := range hsh {
			slot[i] = float32(hv)
		}
	}

	xiMinus = make([]float32, l.k)
	xiPlus = make([]float32, l.k)
	for i := range f {
		xiMinus[i] = f[i] - slot[i]*l.r
		xiPlus[i] = l.r - xiMinus[i]
	}
	return xiMinus, xiPlus, nil
}

// l2State mirrors L2's unexported fields for gob serialization.
type l2State struct {
	Dim int
	K   int
	R   float32
	A   [][]float32
	B   []float32
}

// GobEncode implements gob.GobEncoder.
func (l *L2) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(l2State{Dim: l.dim, K: l.k, R: l.r, A: l.a, B: l.b})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (l *L2) GobDecode(data []byte) error {
	var st l2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	l.dim, l.k, l.r, l.a, l.b = st.Dim, st.K, st.R, st.A, st.B
	return nil
}
