package td

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// ExpectedSarsa learns an action value function with the expectation
// target
//
//	G = R + discount * sum_a pi_targ(a|S') q_targ(S', a)
//
// averaging the target network's values over the target policy
// instead of sampling a next action, which removes the variance that
// the sampled A' contributes to the Sarsa target.
type ExpectedSarsa struct {
	*TDLearningQWithTargetPolicy
}

// NewExpectedSarsa creates an ExpectedSarsa learner for the action
// value function q. The target policy piTarg is required and must
// have one output per action. A nil qTarg bootstraps from q itself.
// A nil sol defaults to Adam with step size DefaultStepSize and a nil
// loss to the Huber loss; reg may be nil for an unregularized target.
func NewExpectedSarsa(q, piTarg, qTarg FuncApprox, sol solver.Updater,
	loss Loss, reg PolicyRegularizer) (*ExpectedSarsa, error) {
	onlineQ, targets, err := qPair("newExpectedSarsa", q, qTarg)
	if err != nil {
		return nil, err
	}
	if piTarg == nil {
		return nil, fmt.Errorf("newExpectedSarsa: no target policy " +
			"given")
	}
	pi, err := policyOrNil("newExpectedSarsa", piTarg)
	if err != nil {
		return nil, err
	}
	if pi.Outputs() != onlineQ.NumActions() {
		return nil, fmt.Errorf("newExpectedSarsa: policy outputs must "+
			"match action count\n\twant(%v)\n\thave(%v)",
			onlineQ.NumActions(), pi.Outputs())
	}
	targetQ := targets[0]

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		all, _, err := targetQ.EvalAll(targetParams.Get("q_targ"),
			targetState.Get("q_targ"), rng, b.SNext, false)
		if err != nil {
			return nil, err
		}
		dist, _, err := pi.Eval(targetParams.Get("pi_targ"),
			targetState.Get("pi_targ"), rng, b.SNext, false)
		if err != nil {
			return nil, err
		}
		qNext := rowExpectation(all, dist, targetQ.NumActions())

		g := make([]float64, b.BatchSize())
		for i := range g {
			g[i] = b.R[i] + b.Discount[i]*qNext[i]
		}
		return g, nil
	}

	base, err := newTDLearningQWithTargetPolicy("ExpectedSarsa", onlineQ,
		pi, targets, target, sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &ExpectedSarsa{base}, nil
}
