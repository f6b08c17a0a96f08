// Package linear implements state value and action value functions
// using linear function approximation. Predictions are linear in the
// state features, so evaluation and gradients reduce to matrix
// products, computed with gonum over views of the parameter tree's
// backing data.
//
// The approximators are pure with respect to their receivers: Eval
// and Grad read parameters from the trees they are given, never from
// the receiver. The receiver only carries the current parameters for
// Params and SetParams, and the random number stream.
package linear

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/gotd/tree"
)

// V is a linear state value function v(s) = w·s + b.
type V struct {
	features int
	params   *tree.Tree
	rng      *rand.Rand
}

// NewV creates a linear state value function over feature vectors of
// the given length. Weights are drawn from init, or zero when init is
// nil; the bias starts at zero.
func NewV(features int, seed uint64, init distuv.Rander) (*V, error) {
	if features <= 0 {
		return nil, fmt.Errorf("newV: features must be positive, "+
			"got %v", features)
	}

	w := make([]float64, features)
	if init != nil {
		for i := range w {
			w[i] = init.Rand()
		}
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector(w),
		"b": tree.NewScalar(0),
	})
	return &V{
		features: features,
		params:   params,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Params returns the current parameter tree {w, b}.
func (v *V) Params() *tree.Tree {
	return v.params
}

// SetParams replaces the current parameters. The new tree must have
// the same structure as the old one.
func (v *V) SetParams(params *tree.Tree) error {
	if !tree.SameStructure(params, v.params) {
		return fmt.Errorf("setParams: parameter structure mismatch"+
			"\n\twant(%v)\n\thave(%v)", tree.Structure(v.params),
			tree.Structure(params))
	}
	v.params = params
	return nil
}

// FunctionState returns an empty tree: linear value functions are
// stateless.
func (v *V) FunctionState() *tree.Tree {
	return tree.NewBranch(nil)
}

// SetFunctionState implements the function approximator interface for
// a stateless function: only an empty state is accepted.
func (v *V) SetFunctionState(state *tree.Tree) error {
	if state != nil && state.NumLeaves() != 0 {
		return fmt.Errorf("setFunctionState: linear value functions " +
			"are stateless")
	}
	return nil
}

// RNG returns the function's random number stream.
func (v *V) RNG() *rand.Rand {
	return v.rng
}

// Features returns the length of the feature vectors the function
// operates on.
func (v *V) Features() int {
	return v.features
}

// Eval predicts the value of each state in s, a flat batch of feature
// vectors, at the given parameters. The predictions are S·w + b.
func (v *V) Eval(params, state *tree.Tree, rng *rand.Rand, s []float64,
	train bool) ([]float64, *tree.Tree, error) {
	n, err := v.batchSize("eval", s)
	if err != nil {
		return nil, nil, err
	}
	w, b, err := v.leaves("eval", params)
	if err != nil {
		return nil, nil, err
	}

	pred := mat.NewVecDense(n, nil)
	pred.MulVec(mat.NewDense(n, v.features, s), mat.NewVecDense(v.features, w))

	out := pred.RawVector().Data
	for i := range out {
		out[i] += b
	}
	return out, state, nil
}

// Grad computes the gradient of a scalar loss with respect to the
// parameters, given the loss gradient dLdV with respect to each
// prediction: g_w = Sᵀ·dLdV and g_b = Σ dLdV.
func (v *V) Grad(params, state *tree.Tree, rng *rand.Rand, s,
	dLdV []float64) (*tree.Tree, error) {
	n, err := v.batchSize("grad", s)
	if err != nil {
		return nil, err
	}
	if len(dLdV) != n {
		return nil, fmt.Errorf("grad: one loss gradient needed per "+
			"state\n\twant(%v)\n\thave(%v)", n, len(dLdV))
	}
	if _, _, err := v.leaves("grad", params); err != nil {
		return nil, err
	}

	gw := mat.NewVecDense(v.features, nil)
	gw.MulVec(mat.NewDense(n, v.features, s).T(), mat.NewVecDense(n, dLdV))

	return tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewVector(gw.RawVector().Data),
		"b": tree.NewScalar(floats.Sum(dLdV)),
	}), nil
}

// batchSize validates that s is a whole number of feature vectors and
// returns how many.
func (v *V) batchSize(op string, s []float64) (int, error) {
	if len(s) == 0 || len(s)%v.features != 0 {
		return 0, fmt.Errorf("%v: states must hold a whole number of "+
			"feature vectors of length %v, got %v values", op,
			v.features, len(s))
	}
	return len(s) / v.features, nil
}

// leaves pulls the weight and bias data out of a parameter tree.
func (v *V) leaves(op string, params *tree.Tree) ([]float64, float64,
	error) {
	w := params.Get("w")
	b := params.Get("b")
	if w == nil || !w.IsLeaf() || b == nil || !b.IsLeaf() {
		return nil, 0, fmt.Errorf("%v: parameter tree must hold leaves "+
			"w and b, got %v", op, tree.Structure(params))
	}
	wData := w.Data()
	if len(wData) != v.features {
		return nil, 0, fmt.Errorf("%v: weights have wrong size"+
			"\n\twant(%v)\n\thave(%v)", op, v.features, len(wData))
	}
	return wData, b.Data()[0], nil
}
