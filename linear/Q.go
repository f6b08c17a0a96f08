package linear

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/samuelfneumann/gotd/tree"
)

// Q is a linear action value function over a discrete action space,
// q(s, a) = w_a·s + b_a, with one weight row and bias per action.
type Q struct {
	features int
	actions  int
	params   *tree.Tree
	rng      *rand.Rand
}

// NewQ creates a linear action value function over feature vectors of
// the given length and a discrete action space of the given size.
// Each action's weight row is drawn from init, which must have
// dimension features, or zero when init is nil; biases start at zero.
func NewQ(features, actions int, seed uint64, init distmv.Rander) (*Q,
	error) {
	if features <= 0 {
		return nil, fmt.Errorf("newQ: features must be positive, "+
			"got %v", features)
	}
	if actions <= 0 {
		return nil, fmt.Errorf("newQ: actions must be positive, "+
			"got %v", actions)
	}

	w := make([]float64, actions*features)
	if init != nil {
		for a := 0; a < actions; a++ {
			init.Rand(w[a*features : (a+1)*features])
		}
	}

	params := tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewMatrix(actions, features, w),
		"b": tree.NewVector(make([]float64, actions)),
	})
	return &Q{
		features: features,
		actions:  actions,
		params:   params,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Params returns the current parameter tree {w, b}.
func (q *Q) Params() *tree.Tree {
	return q.params
}

// SetParams replaces the current parameters. The new tree must have
// the same structure as the old one.
func (q *Q) SetParams(params *tree.Tree) error {
	if !tree.SameStructure(params, q.params) {
		return fmt.Errorf("setParams: parameter structure mismatch"+
			"\n\twant(%v)\n\thave(%v)", tree.Structure(q.params),
			tree.Structure(params))
	}
	q.params = params
	return nil
}

// FunctionState returns an empty tree: linear value functions are
// stateless.
func (q *Q) FunctionState() *tree.Tree {
	return tree.NewBranch(nil)
}

// SetFunctionState implements the function approximator interface for
// a stateless function: only an empty state is accepted.
func (q *Q) SetFunctionState(state *tree.Tree) error {
	if state != nil && state.NumLeaves() != 0 {
		return fmt.Errorf("setFunctionState: linear value functions " +
			"are stateless")
	}
	return nil
}

// RNG returns the function's random number stream.
func (q *Q) RNG() *rand.Rand {
	return q.rng
}

// Features returns the length of the feature vectors the function
// operates on.
func (q *Q) Features() int {
	return q.features
}

// NumActions returns the size of the action space.
func (q *Q) NumActions() int {
	return q.actions
}

// PreprocessActions one-hot encodes a batch of raw discrete actions.
// Each raw action must be an integral index into the action space.
func (q *Q) PreprocessActions(a []float64) ([]float64, error) {
	out := make([]float64, len(a)*q.actions)
	for i, raw := range a {
		index := int(raw)
		if float64(index) != raw || index < 0 || index >= q.actions {
			return nil, fmt.Errorf("preprocessActions: action %v is "+
				"not an index into %v actions", raw, q.actions)
		}
		out[i*q.actions+index] = 1.0
	}
	return out, nil
}

// EvalAll predicts the value of every action at each state in s, a
// flat batch of feature vectors, at the given parameters. The
// predictions are S·Wᵀ + b, returned row-major with one row of
// action values per state.
func (q *Q) EvalAll(params, state *tree.Tree, rng *rand.Rand,
	s []float64, train bool) ([]float64, *tree.Tree, error) {
	n, err := q.batchSize("evalAll", s)
	if err != nil {
		return nil, nil, err
	}
	w, b, err := q.leaves("evalAll", params)
	if err != nil {
		return nil, nil, err
	}

	pred := mat.NewDense(n, q.actions, nil)
	pred.Mul(mat.NewDense(n, q.features, s),
		mat.NewDense(q.actions, q.features, w).T())

	out := pred.RawMatrix().Data
	for i := 0; i < n; i++ {
		for j := 0; j < q.actions; j++ {
			out[i*q.actions+j] += b[j]
		}
	}
	return out, state, nil
}

// Eval predicts the value of each state-action pair, where a is the
// one-hot encoded batch of actions produced by PreprocessActions.
func (q *Q) Eval(params, state *tree.Tree, rng *rand.Rand, s,
	a []float64, train bool) ([]float64, *tree.Tree, error) {
	all, state, err := q.EvalAll(params, state, rng, s, train)
	if err != nil {
		return nil, nil, err
	}
	n := len(all) / q.actions
	if len(a) != n*q.actions {
		return nil, nil, fmt.Errorf("eval: one one-hot action needed "+
			"per state\n\twant(%v)\n\thave(%v)", n*q.actions, len(a))
	}

	pred := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < q.actions; j++ {
			pred[i] += a[i*q.actions+j] * all[i*q.actions+j]
		}
	}
	return pred, state, nil
}

// Grad computes the gradient of a scalar loss with respect to the
// parameters, given the loss gradient dLdQ with respect to each
// state-action prediction. The gradient of row a accumulates the
// feature vectors of the transitions that took action a, scaled by
// their loss gradients.
func (q *Q) Grad(params, state *tree.Tree, rng *rand.Rand, s,
	a, dLdQ []float64) (*tree.Tree, error) {
	n, err := q.batchSize("grad", s)
	if err != nil {
		return nil, err
	}
	if len(a) != n*q.actions {
		return nil, fmt.Errorf("grad: one one-hot action needed per "+
			"state\n\twant(%v)\n\thave(%v)", n*q.actions, len(a))
	}
	if len(dLdQ) != n {
		return nil, fmt.Errorf("grad: one loss gradient needed per "+
			"state\n\twant(%v)\n\thave(%v)", n, len(dLdQ))
	}
	if _, _, err := q.leaves("grad", params); err != nil {
		return nil, err
	}

	// sens[i][j] = a[i][j] * dLdQ[i] routes each transition's loss
	// gradient to the action it took.
	sens := mat.NewDense(n, q.actions, nil)
	sensData := sens.RawMatrix().Data
	for i := 0; i < n; i++ {
		for j := 0; j < q.actions; j++ {
			sensData[i*q.actions+j] = a[i*q.actions+j] * dLdQ[i]
		}
	}

	gw := mat.NewDense(q.actions, q.features, nil)
	gw.Mul(sens.T(), mat.NewDense(n, q.features, s))

	gb := make([]float64, q.actions)
	for i := 0; i < n; i++ {
		for j := 0; j < q.actions; j++ {
			gb[j] += sensData[i*q.actions+j]
		}
	}

	return tree.NewBranch(map[string]*tree.Tree{
		"w": tree.NewMatrix(q.actions, q.features, gw.RawMatrix().Data),
		"b": tree.NewVector(gb),
	}), nil
}

func (q *Q) batchSize(op string, s []float64) (int, error) {
	if len(s) == 0 || len(s)%q.features != 0 {
		return 0, fmt.Errorf("%v: states must hold a whole number of "+
			"feature vectors of length %v, got %v values", op,
			q.features, len(s))
	}
	return len(s) / q.features, nil
}

func (q *Q) leaves(op string, params *tree.Tree) ([]float64, []float64,
	error) {
	w := params.Get("w")
	b := params.Get("b")
	if w == nil || !w.IsLeaf() || b == nil || !b.IsLeaf() {
		return nil, nil, fmt.Errorf("%v: parameter tree must hold "+
			"leaves w and b, got %v", op, tree.Structure(params))
	}
	wData, bData := w.Data(), b.Data()
	if len(wData) != q.actions*q.features || len(bData) != q.actions {
		return nil, nil, fmt.Errorf("%v: parameters have wrong size"+
			"\n\twant(%v, %v)\n\thave(%v, %v)", op,
			q.actions*q.features, q.actions, len(wData), len(bData))
	}
	return wData, bData, nil
}
