package td

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotd/tree"
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// PolicyRegularizer produces a per-transition adjustment to the
// bootstrap target from a policy's distribution parameters. The
// output is SUBTRACTED from the target: regularizers conventionally
// return penalties, such as a negative entropy bonus, so that
// subtraction debiases the target. The regularizer's policy is
// evaluated at the target parameter tree's "reg_pi" entry, and Apply
// receives the "reg_hparams" entry so that hyperparameters travel
// with the rest of the target parameters.
type PolicyRegularizer interface {
	// Pi returns the regularized policy
	Pi() Policy

	// Apply returns one regularization value per row of distParams
	Apply(distParams []float64, hparams *tree.Tree) ([]float64, error)

	// Hyperparams returns the regularizer's hyperparameters
	Hyperparams() map[string]float64
}

// EntropyRegularizer biases bootstrap targets towards high-entropy
// policies. Its output is -beta * H(pi(·|s)), so subtracting it from
// the target adds an entropy bonus of beta * H.
type EntropyRegularizer struct {
	pi   Policy
	beta float64
}

// NewEntropyRegularizer returns a new entropy regularizer over pi
// with bonus scale beta.
func NewEntropyRegularizer(pi Policy, beta float64) (*EntropyRegularizer,
	error) {
	if pi == nil {
		return nil, fmt.Errorf("newEntropyRegularizer: no policy given")
	}
	if beta < 0 {
		return nil, fmt.Errorf("newEntropyRegularizer: beta must be "+
			"non-negative, got %v", beta)
	}
	return &EntropyRegularizer{pi: pi, beta: beta}, nil
}

// Pi returns the regularized policy
func (e *EntropyRegularizer) Pi() Policy {
	return e.pi
}

// Hyperparams returns the regularizer's hyperparameters
func (e *EntropyRegularizer) Hyperparams() map[string]float64 {
	return map[string]float64{"beta": e.beta}
}

// Apply computes -beta * H for the softmax distribution described by
// each row of distParams. When hparams carries a "beta" entry it
// overrides the constructor's value, so that the scale used is always
// the one recorded in the target parameters.
func (e *EntropyRegularizer) Apply(distParams []float64,
	hparams *tree.Tree) ([]float64, error) {
	outputs := e.pi.Outputs()
	if outputs <= 0 || len(distParams)%outputs != 0 {
		return nil, fmt.Errorf("apply: cannot split %v distribution "+
			"parameters into rows of %v", len(distParams), outputs)
	}

	beta := e.beta
	if b := hparams.Get("beta"); b != nil {
		beta = b.Data()[0]
	}

	rows := len(distParams) / outputs
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		probs := floatutils.Softmax(distParams[i*outputs : (i+1)*outputs])
		entropy := 0.0
		for _, p := range probs {
			if p > 0 {
				entropy -= p * math.Log(p)
			}
		}
		out[i] = -beta * entropy
	}
	return out, nil
}
