package linear

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/gotd/tree"
)

const tolerance float64 = 1e-12

func TestVEval(t *testing.T) {
	v, err := NewV(2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{1.0, 2.0}),
		"b": tree.NewScalar(0.5),
	})
	if err := v.SetParams(params); err != nil {
		t.Fatal(err)
	}

	s := []float64{1.0, 1.0, 2.0, 0.0}
	pred, _, err := v.Eval(v.Params(), v.FunctionState(), v.RNG(), s,
		false)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{3.5, 2.5}
	for i := range want {
		if math.Abs(pred[i]-want[i]) > tolerance {
			t.Errorf("wrong prediction at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, want[i], pred[i])
		}
	}
}

func TestVGrad(t *testing.T) {
	v, err := NewV(2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := []float64{1.0, 1.0, 2.0, 0.0}
	dLdV := []float64{1.0, 2.0}
	grads, err := v.Grad(v.Params(), v.FunctionState(), v.RNG(), s, dLdV)
	if err != nil {
		t.Fatal(err)
	}

	wantW := []float64{5.0, 1.0}
	haveW := grads.Get("w").Data()
	for i := range wantW {
		if math.Abs(haveW[i]-wantW[i]) > tolerance {
			t.Errorf("wrong weight gradient at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, wantW[i], haveW[i])
		}
	}

	wantB := 3.0
	if haveB := grads.Get("b").Data()[0]; math.Abs(haveB-wantB) >
		tolerance {
		t.Errorf("wrong bias gradient \n\twant(%v)\n\thave(%v)", wantB,
			haveB)
	}
}

func TestVEvalDoesNotMutateReceiver(t *testing.T) {
	v, err := NewV(3, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := tree.Copy(v.Params())

	other := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{1.0, 2.0, 3.0}),
		"b": tree.NewScalar(-1.0),
	})
	if _, _, err := v.Eval(other, v.FunctionState(), v.RNG(),
		[]float64{1.0, 1.0, 1.0}, true); err != nil {
		t.Fatal(err)
	}

	if !tree.Equal(v.Params(), before) {
		t.Error("evaluating at foreign parameters mutated the receiver")
	}
}

func TestVUniformInit(t *testing.T) {
	init := distuv.Uniform{Min: -1.0, Max: 1.0,
		Src: rand.NewSource(14)}
	v, err := NewV(10, 1, init)
	if err != nil {
		t.Fatal(err)
	}

	w := v.Params().Get("w").Data()
	zero := true
	for _, value := range w {
		if value < -1.0 || value > 1.0 {
			t.Errorf("initial weight %v outside [-1, 1]", value)
		}
		if value != 0.0 {
			zero = false
		}
	}
	if zero {
		t.Error("uniform initialization left all weights zero")
	}
}

func TestVSetParamsStructureMismatch(t *testing.T) {
	v, err := NewV(2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	bad := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector([]float64{1.0, 2.0, 3.0}),
		"b": tree.NewScalar(0.0),
	})
	if err := v.SetParams(bad); err == nil {
		t.Error("expected error when setting wrongly sized parameters")
	}
}

func TestVInvalidBatch(t *testing.T) {
	v, err := NewV(2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Eval(v.Params(), v.FunctionState(), v.RNG(),
		[]float64{1.0, 2.0, 3.0}, false); err == nil {
		t.Error("expected error for a partial feature vector")
	}
}
