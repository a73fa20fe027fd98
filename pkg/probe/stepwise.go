// Package probe implements multi-probe LSH: generating perturbation
// vectors that expand a query's base hash into nearby buckets to raise
// recall without adding hash tables.
package probe

import (
	"math/big"

	"github.com/vecindex/golsh/pkg/hash"
)

// IndexSign pairs a hash component index with the perturbation to apply
// to it (+1 or -1).
type IndexSign struct {
	Index int
	Sign  int8
}

// PerturbCombinations enumerates all n-index perturbations of a hash of
// length hashLen, in lexicographic order of the underlying index tuples
// drawn from [0, 2*hashLen). Indices in [0, hashLen) map to sign +1 at
// that component; indices in [hashLen, 2*hashLen) map to sign -1 at
// component index/2.
func PerturbCombinations(hashLen, n int) [][]IndexSign {
	switchpoint := hashLen - 1
	combos := combinations(2*hashLen, n)
	out := make([][]IndexSign, len(combos))
	for i, comb := range combos {
		pairs := make([]IndexSign, len(comb))
		for j, idx := range comb {
			if idx > switchpoint {
				pairs[j] = IndexSign{Index: idx / 2, Sign: -1}
			} else {
				pairs[j] = IndexSign{Index: idx, Sign: 1}
			}
		}
		out[i] = pairs
	}
	return out
}

// StepWise generates up to budget perturbation vectors of length
// hashLen with integer entries: all single-index perturbations first,
// then all two-index perturbations, etc., until budget is exhausted or
// hashLen is reached. Signs follow PerturbCombinations' mapping, so +1
// is applied to every component while -1 lands only on the upper-half
// components (index/2), each of them twice per round. At each k the
// remaining budget is reduced by C(hashLen,k)*2 regardless of how many
// of that round's combinations were actually emitted.
func StepWise(hashLen, budget int) []hash.Hash {
	if hashLen <= 0 || budget <= 0 {
		return nil
	}

	var perturbs []hash.Hash
	remaining := budget

	for k := 1; remaining > 0 && k <= hashLen; k++ {
		combos := PerturbCombinations(hashLen, k)
		take := remaining
		if take > len(combos) {
			take = len(combos)
		}
		for _, pairs := range combos[:take] {
			p := make(hash.Hash, hashLen)
			for _, ps := range pairs {
				p[ps.Index] += hash.Primitive(ps.Sign)
			}
			perturbs = append(perturbs, p)
		}
		nCombinations := binomial(hashLen, k) * 2
		remaining -= int(nCombinations)
	}
	return perturbs
}

// combinations enumerates all k-combinations of [0,n) in lexicographic
// order of index tuples.
func combinations(n, k int) [][]int {
	if k > n || k <= 0 {
		return nil
	}
	var out [][]int
	comb := make([]int, k)
	for i := range comb {
		comb[i] = i
	}
	for {
		item := make([]int, k)
		copy(item, comb)
		out = append(out, item)

		i := k - 1
		for i >= 0 && comb[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		comb[i]++
		for j := i + 1; j < k; j++ {
			comb[j] = comb[j-1] + 1
		}
	}
	return out
}

func binomial(n, k int) int64 {
	return new(big.Int).Binomial(int64(n), int64(k)).Int64()
}
