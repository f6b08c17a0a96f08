package network

import (
	"golang.org/x/exp/rand"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/gotd/tree"
)

// ValueMLP is a state value function v(s) computed by a multi-layered
// perceptron with a single output head.
type ValueMLP struct {
	*mlp
}

// NewValueMLP returns a state value function over feature vectors of
// the given length. The network has len(hiddenSizes) hidden layers,
// where hiddenSizes[i], biases[i], and activations[i] describe hidden
// layer i, followed by a linear output layer with a bias. A nil init
// defaults to Glorot uniform initialization.
func NewValueMLP(features int, seed uint64, hiddenSizes []int,
	biases []bool, activations []*Activation, init G.InitWFn) (*ValueMLP,
	error) {
	core, err := newMLP("newValueMLP", features, 1, seed, hiddenSizes,
		biases, activations, init)
	if err != nil {
		return nil, err
	}
	return &ValueMLP{core}, nil
}

// Eval predicts the value of each state in s, a flat batch of feature
// vectors, at the given parameters.
func (v *ValueMLP) Eval(params, state *tree.Tree, rng *rand.Rand,
	s []float64, train bool) ([]float64, *tree.Tree, error) {
	out, err := v.evalAll("eval", params, s)
	if err != nil {
		return nil, nil, err
	}
	return out, state, nil
}

// Grad computes the gradient of a scalar loss with respect to the
// parameters, given the loss gradient dLdV with respect to each
// prediction.
func (v *ValueMLP) Grad(params, state *tree.Tree, rng *rand.Rand, s,
	dLdV []float64) (*tree.Tree, error) {
	return v.vjp("grad", params, s, dLdV)
}
