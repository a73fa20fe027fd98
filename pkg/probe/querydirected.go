package probe

import (
	"sort"

	"github.com/vecindex/golsh/pkg/hash"
)

type probeCandidate struct {
	idx   int
	sign  int8
	score float32
}

// QueryDirected ranks single-index +-1 perturbations of an L2 hasher's
// hash by ascending distance to the corresponding slot boundary (smaller
// distance -> more likely true neighbor per the Multi-Probe LSH paper),
// then extends to multi-index perturbations by summing component scores,
// emitting in ascending total-score order and truncating to budget.
func QueryDirected(prober hash.QueryDirectedProber, q []float32, baseHash hash.Hash, budget int) ([]hash.Hash, error) {
	if budget <= 0 {
		return nil, nil
	}

	xiMinus, xiPlus, err := prober.DistanceToBound(q, baseHash)
	if err != nil {
		return nil, err
	}
	k := len(xiMinus)

	singles := make([]probeCandidate, 0, 2*k)
	for i := 0; i < k; i++ {
		singles = append(singles, probeCandidate{idx: i, sign: 1, score: xiPlus[i]})
		singles = append(singles, probeCandidate{idx: i, sign: -1, score: xiMinus[i]})
	}
	sort.Slice(singles, func(i, j int) bool { return singles[i].score < singles[j].score })

	out := make([]hash.Hash, 0, budget)

	for _, c := range singles {
		if len(out) >= budget {
			return out, nil
		}
		p := make(hash.Hash, k)
		p[c.idx] = hash.Primitive(c.sign)
		out = append(out, p)
	}

	// Multi-index perturbations: combine pairs (then triples, ..., up to
	// k-way) of the ranked singles, summing scores, until budget is
	// exhausted or every component index has been used, the same stop
	// rule step-wise probing follows. The lowest-total-score
	// combinations at a given size can only
	// be built from the lowest-scoring individual components, so each
	// size starts by considering a small candidate window of the
	// cheapest-scoring singles and only grows that window toward the full
	// `singles` set when it doesn't yet hold enough distinct-component
	// combinations to fill the remaining budget.
	for size := 2; size <= k && len(out) < budget; size++ {
		remaining := budget - len(out)
		multi := rankedCombos(singles, size, remaining)
		for _, m := range multi {
			if len(out) >= budget {
				break
			}
			p := make(hash.Hash, k)
			for _, ci := range m.combo {
				c := singles[ci]
				p[c.idx] += hash.Primitive(c.sign)
			}
			out = append(out, p)
		}
	}

	return out, nil
}

type scoredCombo struct {
	combo []int
	score float32
}

// rankedCombos returns the `need` lowest-total-score, distinct-component
// size-way combinations of pool (already sorted ascending by score),
// expanding the candidate window into pool until either `need` valid
// combinations are found or the whole pool has been considered.
func rankedCombos(pool []probeCandidate, size, need int) []scoredCombo {
	window := size * 2
	if window < need {
		window = need
	}
	for {
		if window > len(pool) {
			window = len(pool)
		}
		candidates := pool[:window]
		combos := combinations(len(candidates), size)
		var multi []scoredCombo
		for _, combo := range combos {
			if !distinctComponents(candidates, combo) {
				continue
			}
			var total float32
			for _, ci := range combo {
				total += candidates[ci].score
			}
			multi = append(multi, scoredCombo{combo: combo, score: total})
		}
		sort.Slice(multi, func(i, j int) bool { return multi[i].score < multi[j].score })
		if len(multi) >= need || window == len(pool) {
			return multi
		}
		window *= 2
	}
}

func distinctComponents(pool []probeCandidate, combo []int) bool {
	seen := make(map[int]bool, len(combo))
	for _, ci := range combo {
		if seen[pool[ci].idx] {
			return false
		}
		seen[pool[ci].idx] = true
	}
	return true
}
