package td

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// DoubleQLearning learns an action value function with the
// decoupled off-policy target
//
//	G = R + discount * q_targ(S', argmax_a q(S', a))
//
// selecting the greedy action with the online network and evaluating
// it with the target network, which removes the overestimation bias
// of bootstrapping from a single network's own maximum. When a target
// policy is given, its most probable action is used for selection
// instead of the online argmax.
type DoubleQLearning struct {
	*TDLearningQWithTargetPolicy
}

// NewDoubleQLearning creates a DoubleQLearning learner for the action
// value function q. A nil piTarg selects greedy actions with the
// online network; a nil qTarg bootstraps from q itself. A nil sol
// defaults to Adam with step size DefaultStepSize and a nil loss to
// the Huber loss; reg may be nil for an unregularized target.
func NewDoubleQLearning(q, piTarg, qTarg FuncApprox, sol solver.Updater,
	loss Loss, reg PolicyRegularizer) (*DoubleQLearning, error) {
	onlineQ, targets, err := qPair("newDoubleQLearning", q, qTarg)
	if err != nil {
		return nil, err
	}
	pi, err := policyOrNil("newDoubleQLearning", piTarg)
	if err != nil {
		return nil, err
	}
	if pi != nil && pi.Outputs() != onlineQ.NumActions() {
		return nil, fmt.Errorf("newDoubleQLearning: policy outputs "+
			"must match action count\n\twant(%v)\n\thave(%v)",
			onlineQ.NumActions(), pi.Outputs())
	}
	targetQ := targets[0]

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		var aNext []float64
		if pi == nil {
			// Action selection reads the online parameters out of the
			// aggregated tree, not the learner, keeping the target
			// function pure.
			all, _, err := onlineQ.EvalAll(targetParams.Get("q"),
				targetState.Get("q"), rng, b.SNext, false)
			if err != nil {
				return nil, err
			}
			aNext = rowArgMax(all, onlineQ.NumActions())
		} else {
			dist, _, err := pi.Eval(targetParams.Get("pi_targ"),
				targetState.Get("pi_targ"), rng, b.SNext, false)
			if err != nil {
				return nil, err
			}
			aNext = rowArgMax(dist, pi.Outputs())
		}

		aNext, err := targetQ.PreprocessActions(aNext)
		if err != nil {
			return nil, err
		}
		qNext, _, err := targetQ.Eval(targetParams.Get("q_targ"),
			targetState.Get("q_targ"), rng, b.SNext, aNext, false)
		if err != nil {
			return nil, err
		}

		g := make([]float64, b.BatchSize())
		for i := range g {
			g[i] = b.R[i] + b.Discount[i]*qNext[i]
		}
		return g, nil
	}

	base, err := newTDLearningQWithTargetPolicy("DoubleQLearning",
		onlineQ, pi, targets, target, sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &DoubleQLearning{base}, nil
}
