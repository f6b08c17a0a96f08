package solver

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/samuelfneumann/gotd/tree"
)

func testParams() *tree.Tree {
	return tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{1, 2}),
		"b": tree.NewVector([]float64{0}),
	})
}

func TestAdamFirstStep(t *testing.T) {
	sol, err := NewAdam(0.1, 1e-8, 0.9, 0.999)
	if err != nil {
		t.Fatal(err)
	}

	params := testParams()
	state := sol.Init(params)
	grads := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{0.5, -0.5}),
		"b": tree.NewVector([]float64{0}),
	})

	updates, newState, err := sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}

	// After bias correction the first step is -stepSize * g/|g|
	want := []float64{-0.1, 0.1}
	for i, v := range updates.Get("w").Data() {
		if math.Abs(v-want[i]) > 1e-6 {
			t.Errorf("wrong update at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], v)
		}
	}

	if count := newState.Get("count").Data()[0]; count != 1 {
		t.Errorf("wrong step count \n\twant(%v)\n\thave(%v)", 1, count)
	}

	// The input state must be untouched
	if state.Get("count").Data()[0] != 0 {
		t.Error("update modified the input state")
	}
	if state.Get("mu").Get("w").Data()[0] != 0 {
		t.Error("update modified the input moment estimates")
	}
}

func TestAdamZeroGradients(t *testing.T) {
	sol, err := NewDefaultAdam(0.01)
	if err != nil {
		t.Fatal(err)
	}

	params := testParams()
	state := sol.Init(params)
	zero := tree.ZerosLike(params)

	updates, newState, err := sol.Update(zero, state, params)
	if err != nil {
		t.Fatal(err)
	}

	// Zero gradients produce zero updates, but the step count still
	// advances
	if !tree.Equal(updates, zero) {
		t.Error("zero gradients should produce zero updates")
	}
	if count := newState.Get("count").Data()[0]; count != 1 {
		t.Errorf("step count should advance \n\twant(%v)\n\thave(%v)",
			1, count)
	}

	newParams, err := ApplyUpdates(params, updates)
	if err != nil {
		t.Fatal(err)
	}
	if !tree.Equal(newParams, params) {
		t.Error("zero updates should leave parameters unchanged")
	}
}

func TestVanilla(t *testing.T) {
	sol, err := NewVanilla(0.5, 0, -1)
	if err != nil {
		t.Fatal(err)
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{0, 0}),
	})
	grads := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{2, -2}),
	})

	state := sol.Init(params)
	updates, state, err := sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{-1, 1}
	for i, v := range updates.Get("w").Data() {
		if v != want[i] {
			t.Errorf("wrong update at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], v)
		}
	}

	// With momentum, the second step accumulates the trace
	sol, err = NewVanilla(0.5, 0.9, -1)
	if err != nil {
		t.Fatal(err)
	}
	state = sol.Init(params)
	_, state, err = sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}
	updates, _, err = sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}
	if v := updates.Get("w").Data()[0]; math.Abs(v-(-1.9)) > 1e-12 {
		t.Errorf("wrong momentum update \n\twant(%v)\n\thave(%v)", -1.9, v)
	}
}

func TestVanillaClip(t *testing.T) {
	sol, err := NewVanilla(0.5, 0, 0.25)
	if err != nil {
		t.Fatal(err)
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{0}),
	})
	grads := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{10}),
	})

	state := sol.Init(params)
	updates, _, err := sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}
	if v := updates.Get("w").Data()[0]; v != -0.25 {
		t.Errorf("wrong clipped update \n\twant(%v)\n\thave(%v)", -0.25, v)
	}
}

func TestRMSProp(t *testing.T) {
	sol, err := NewRMSProp(0.1, 0, 0.9, -1)
	if err != nil {
		t.Fatal(err)
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{0}),
	})
	grads := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{3}),
	})

	state := sol.Init(params)
	updates, state, err := sol.Update(grads, state, params)
	if err != nil {
		t.Fatal(err)
	}

	want := -0.1 * 3 / math.Sqrt(0.1*9)
	if v := updates.Get("w").Data()[0]; math.Abs(v-want) > 1e-12 {
		t.Errorf("wrong update \n\twant(%v)\n\thave(%v)", want, v)
	}
	if count := state.Get("count").Data()[0]; count != 1 {
		t.Errorf("wrong step count \n\twant(%v)\n\thave(%v)", 1, count)
	}
}

func TestStateStructuresDiffer(t *testing.T) {
	params := testParams()

	adam, err := NewDefaultAdam(0.001)
	if err != nil {
		t.Fatal(err)
	}
	vanilla, err := NewVanilla(0.001, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	rmsProp, err := NewDefaultRMSProp(0.001)
	if err != nil {
		t.Fatal(err)
	}

	adamState := adam.Init(params)
	vanillaState := vanilla.Init(params)
	rmsPropState := rmsProp.Init(params)

	if tree.SameStructure(adamState, vanillaState) {
		t.Error("adam and vanilla state structures should differ")
	}
	if tree.SameStructure(adamState, rmsPropState) {
		t.Error("adam and rmsprop state structures should differ")
	}
	if tree.SameStructure(vanillaState, rmsPropState) {
		t.Error("vanilla and rmsprop state structures should differ")
	}
	if !tree.SameStructure(adamState, adam.Init(params)) {
		t.Error("re-initialized adam state should match in structure")
	}
}

func TestSolverJSON(t *testing.T) {
	sol, err := NewAdam(0.1, 1e-8, 0.9, 0.999)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(sol)
	if err != nil {
		t.Fatal(err)
	}

	loaded := &Solver{}
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatal(err)
	}

	if loaded.Type != Adam {
		t.Errorf("wrong solver type \n\twant(%v)\n\thave(%v)",
			Adam, loaded.Type)
	}
	if loaded.Config.(*AdamConfig).StepSize != 0.1 {
		t.Errorf("wrong step size \n\twant(%v)\n\thave(%v)",
			0.1, loaded.Config.(*AdamConfig).StepSize)
	}

	// The recreated updater should work
	params := testParams()
	state := loaded.Init(params)
	if _, _, err := loaded.Update(tree.ZerosLike(params), state,
		params); err != nil {
		t.Fatal(err)
	}
}
