package probe

import (
	"reflect"
	"testing"

	mrand "math/rand"

	"github.com/vecindex/golsh/pkg/hash"
)

func TestPerturbCombinationsOrder(t *testing.T) {
	got := PerturbCombinations(4, 2)
	want := [][]IndexSign{
		{{Index: 0, Sign: 1}, {Index: 1, Sign: 1}},
		{{Index: 0, Sign: 1}, {Index: 2, Sign: 1}},
	}
	if len(got) < 2 {
		t.Fatalf("expected at least 2 combinations, got %d", len(got))
	}
	if !reflect.DeepEqual(got[:2], want) {
		t.Errorf("PerturbCombinations(4,2)[:2] = %+v, want %+v", got[:2], want)
	}
}

func TestStepWiseFirstAndLast(t *testing.T) {
	perturbs := StepWise(4, 20)
	if len(perturbs) == 0 {
		t.Fatal("expected non-empty perturbations")
	}
	want0 := hash.Hash{1, 0, 0, 0}
	if !perturbs[0].Equal(want0) {
		t.Errorf("first perturbation = %v, want %v", perturbs[0], want0)
	}
	wantLast := hash.Hash{0, 1, 0, -1}
	last := perturbs[len(perturbs)-1]
	if !last.Equal(wantLast) {
		t.Errorf("last perturbation = %v, want %v", last, wantLast)
	}
}

func TestStepWiseRespectsHashLength(t *testing.T) {
	perturbs := StepWise(4, 1000)
	for _, p := range perturbs {
		if len(p) != 4 {
			t.Fatalf("perturbation length = %d, want 4", len(p))
		}
	}
}

func TestQueryDirectedReturnsBudgetProbes(t *testing.T) {
	r := mrand.New(mrand.NewSource(1))
	l2, err := hash.NewL2(4, 4.0, 3, r)
	if err != nil {
		t.Fatalf("NewL2: %v", err)
	}
	q := []float32{1, 2, 3, 1}
	probes, err := QueryDirected(l2, q, nil, 6)
	if err != nil {
		t.Fatalf("QueryDirected: %v", err)
	}
	if len(probes) != 6 {
		t.Fatalf("expected 6 probes, got %d", len(probes))
	}
	for _, p := range probes {
		if len(p) != 3 {
			t.Fatalf("probe length = %d, want 3", len(p))
		}
	}
}

func TestQueryDirectedFillsLargeBudget(t *testing.T) {
	r := mrand.New(mrand.NewSource(1))
	dim, hashLen := 8, 8
	l2, err := hash.NewL2(dim, 4.0, hashLen, r)
	if err != nil {
		t.Fatalf("NewL2: %v", err)
	}
	q := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	budget := 60
	probes, err := QueryDirected(l2, q, nil, budget)
	if err != nil {
		t.Fatalf("QueryDirected: %v", err)
	}
	if len(probes) != budget {
		t.Fatalf("expected %d probes (hash length %d has far more than %d distinct perturbations available), got %d", budget, hashLen, budget, len(probes))
	}
}
