package network

import (
	"golang.org/x/exp/rand"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/gotd/tree"
)

// SoftmaxMLP is a policy over a discrete action space, computed by a
// multi-layered perceptron with one output head per action. The heads
// are the logits of a softmax distribution; consumers apply the
// softmax themselves, so the logits can double as greedy action
// scores.
type SoftmaxMLP struct {
	*mlp
}

// NewSoftmaxMLP returns a policy over feature vectors of the given
// length and a discrete action space of the given size. The network
// architecture follows NewValueMLP, with the output layer widened to
// one logit per action.
func NewSoftmaxMLP(features, actions int, seed uint64,
	hiddenSizes []int, biases []bool, activations []*Activation,
	init G.InitWFn) (*SoftmaxMLP, error) {
	core, err := newMLP("newSoftmaxMLP", features, actions, seed,
		hiddenSizes, biases, activations, init)
	if err != nil {
		return nil, err
	}
	return &SoftmaxMLP{core}, nil
}

// Outputs returns the number of logits per state, one per action.
func (p *SoftmaxMLP) Outputs() int {
	return p.outputs
}

// Eval computes the distribution logits of each state in s, a flat
// batch of feature vectors, at the given parameters. The result is
// row-major with one row of logits per state.
func (p *SoftmaxMLP) Eval(params, state *tree.Tree, rng *rand.Rand,
	s []float64, train bool) ([]float64, *tree.Tree, error) {
	out, err := p.evalAll("eval", params, s)
	if err != nil {
		return nil, nil, err
	}
	return out, state, nil
}
