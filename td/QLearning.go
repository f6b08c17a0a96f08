package td

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// QLearning learns an action value function with the off-policy
// target
//
//	G = R + discount * q_targ(S', argmax_a q_targ(S', a))
//
// bootstrapping from the greedy action of the target network. When a
// target policy is given the greedy action is taken to be the
// policy's most probable action instead:
//
//	G = R + discount * q_targ(S', mode of pi_targ(.|S'))
type QLearning struct {
	*TDLearningQWithTargetPolicy
}

// NewQLearning creates a QLearning learner for the action value
// function q. A nil piTarg bootstraps from the target network's own
// greedy action; a nil qTarg bootstraps from q itself. A nil sol
// defaults to Adam with step size DefaultStepSize and a nil loss to
// the Huber loss; reg may be nil for an unregularized target.
func NewQLearning(q, piTarg, qTarg FuncApprox, sol solver.Updater,
	loss Loss, reg PolicyRegularizer) (*QLearning, error) {
	onlineQ, targets, err := qPair("newQLearning", q, qTarg)
	if err != nil {
		return nil, err
	}
	pi, err := policyOrNil("newQLearning", piTarg)
	if err != nil {
		return nil, err
	}
	if pi != nil && pi.Outputs() != onlineQ.NumActions() {
		return nil, fmt.Errorf("newQLearning: policy outputs must "+
			"match action count\n\twant(%v)\n\thave(%v)",
			onlineQ.NumActions(), pi.Outputs())
	}
	targetQ := targets[0]

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		var aNext []float64
		if pi == nil {
			all, _, err := targetQ.EvalAll(targetParams.Get("q_targ"),
				targetState.Get("q_targ"), rng, b.SNext, false)
			if err != nil {
				return nil, err
			}
			aNext = rowArgMax(all, targetQ.NumActions())
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

	base, err := newTDLearningQWithTargetPolicy("QLearning", onlineQ, pi,
		targets, target, sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &QLearning{base}, nil
}
