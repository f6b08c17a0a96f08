package network

import (
	"fmt"

	"golang.org/x/exp/rand"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/gotd/tree"
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// ActionValueMLP is an action value function q(s, a) over a discrete
// action space, computed by a multi-layered perceptron with one
// output head per action.
type ActionValueMLP struct {
	*mlp
}

// NewActionValueMLP returns an action value function over feature
// vectors of the given length and a discrete action space of the
// given size. The network architecture follows NewValueMLP, with the
// output layer widened to one head per action.
func NewActionValueMLP(features, actions int, seed uint64,
	hiddenSizes []int, biases []bool, activations []*Activation,
	init G.InitWFn) (*ActionValueMLP, error) {
	core, err := newMLP("newActionValueMLP", features, actions, seed,
		hiddenSizes, biases, activations, init)
	if err != nil {
		return nil, err
	}
	return &ActionValueMLP{core}, nil
}

// NumActions returns the size of the action space.
func (q *ActionValueMLP) NumActions() int {
	return q.outputs
}

// PreprocessActions one-hot encodes a batch of raw discrete actions.
// Each raw action must be an integral index into the action space.
func (q *ActionValueMLP) PreprocessActions(a []float64) ([]float64,
	error) {
	out := make([]float64, len(a)*q.outputs)
	for i, raw := range a {
		index := int(raw)
		if float64(index) != raw || index < 0 || index >= q.outputs {
			return nil, fmt.Errorf("preprocessActions: action %v is "+
				"not an index into %v actions", raw, q.outputs)
		}
		copy(out[i*q.outputs:(i+1)*q.outputs],
			floatutils.OneHot(index, q.outputs))
	}
	return out, nil
}

// EvalAll predicts the value of every action at each state in s, a
// flat batch of feature vectors, at the given parameters. The result
// is row-major with one row of action values per state.
func (q *ActionValueMLP) EvalAll(params, state *tree.Tree,
	rng *rand.Rand, s []float64, train bool) ([]float64, *tree.Tree,
	error) {
	out, err := q.evalAll("evalAll", params, s)
	if err != nil {
		return nil, nil, err
	}
	return out, state, nil
}

// Eval predicts the value of each state-action pair, where a is the
// one-hot encoded batch of actions produced by PreprocessActions.
func (q *ActionValueMLP) Eval(params, state *tree.Tree, rng *rand.Rand,
	s, a []float64, train bool) ([]float64, *tree.Tree, error) {
	all, state, err := q.EvalAll(params, state, rng, s, train)
	if err != nil {
		return nil, nil, err
	}
	n := len(all) / q.outputs
	if len(a) != n*q.outputs {
		return nil, nil, fmt.Errorf("eval: one one-hot action needed "+
			"per state\n\twant(%v)\n\thave(%v)", n*q.outputs, len(a))
	}

	pred := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < q.outputs; j++ {
			pred[i] += a[i*q.outputs+j] * all[i*q.outputs+j]
		}
	}
	return pred, state, nil
}

// Grad computes the gradient of a scalar loss with respect to the
// parameters, given the loss gradient dLdQ with respect to each
// state-action prediction. The gradients flow through the output
// heads of the taken actions alone.
func (q *ActionValueMLP) Grad(params, state *tree.Tree, rng *rand.Rand,
	s, a, dLdQ []float64) (*tree.Tree, error) {
	n := len(dLdQ)
	if len(a) != n*q.outputs {
		return nil, fmt.Errorf("grad: one one-hot action needed per "+
			"state\n\twant(%v)\n\thave(%v)", n*q.outputs, len(a))
	}

	sens := make([]float64, n*q.outputs)
	for i := 0; i < n; i++ {
		for j := 0; j < q.outputs; j++ {
			sens[i*q.outputs+j] = a[i*q.outputs+j] * dLdQ[i]
		}
	}
	return q.vjp("grad", params, s, sens)
}
