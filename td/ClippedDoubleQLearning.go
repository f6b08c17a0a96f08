package td

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// ClippedDoubleQLearning learns an action value function against an
// ensemble of target networks, bootstrapping from the most
// pessimistic of them:
//
//	G = R + discount * min_k q_targ_k(S', argmax_a q_targ_k(S', a))
//
// Each target network greedifies over its own values; the minimum
// over the ensemble then suppresses the value overestimation that any
// single network's maximum carries. When a target policy is given,
// its most probable action replaces the per-network argmax and all
// networks are evaluated at that shared action.
type ClippedDoubleQLearning struct {
	*TDLearningQWithTargetPolicy
}

// NewClippedDoubleQLearning creates a ClippedDoubleQLearning learner
// for the action value function q. At least two target networks are
// required, otherwise there is nothing to take a minimum over. A nil
// piTarg selects greedy actions per target network. A nil sol
// defaults to Adam with step size DefaultStepSize and a nil loss to
// the Huber loss; reg may be nil for an unregularized target.
func NewClippedDoubleQLearning(q FuncApprox, piTarg FuncApprox,
	qTarg []FuncApprox, sol solver.Updater, loss Loss,
	reg PolicyRegularizer) (*ClippedDoubleQLearning, error) {
	onlineQ, targets, err := qList("newClippedDoubleQLearning", q, qTarg)
	if err != nil {
		return nil, err
	}
	if len(targets) < 2 {
		return nil, fmt.Errorf("newClippedDoubleQLearning: at least "+
			"two target value functions required, got %v", len(targets))
	}
	pi, err := policyOrNil("newClippedDoubleQLearning", piTarg)
	if err != nil {
		return nil, err
	}
	if pi != nil && pi.Outputs() != onlineQ.NumActions() {
		return nil, fmt.Errorf("newClippedDoubleQLearning: policy "+
			"outputs must match action count\n\twant(%v)\n\thave(%v)",
			onlineQ.NumActions(), pi.Outputs())
	}

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		var sharedANext []float64
		if pi != nil {
			dist, _, err := pi.Eval(targetParams.Get("pi_targ"),
				targetState.Get("pi_targ"), rng, b.SNext, false)
			if err != nil {
				return nil, err
			}
			a, err := targets[0].PreprocessActions(rowArgMax(dist,
				pi.Outputs()))
			if err != nil {
				return nil, err
			}
			sharedANext = a
		}

		qNext := make([]float64, b.BatchSize())
		for i := range qNext {
			qNext[i] = math.Inf(1)
		}
		for k, qt := range targets {
			params := qTargAt(targetParams, k, len(targets))
			state := qTargAt(targetState, k, len(targets))

			var values []float64
			if pi == nil {
				all, _, err := qt.EvalAll(params, state, rng, b.SNext,
					false)
				if err != nil {
					return nil, err
				}
				values = rowMax(all, qt.NumActions())
			} else {
				v, _, err := qt.Eval(params, state, rng, b.SNext,
					sharedANext, false)
				if err != nil {
					return nil, err
				}
				values = v
			}

			for i := range qNext {
				qNext[i] = math.Min(qNext[i], values[i])
			}
		}

		g := make([]float64, b.BatchSize())
		for i := range g {
			g[i] = b.R[i] + b.Discount[i]*qNext[i]
		}
		return g, nil
	}

	base, err := newTDLearningQWithTargetPolicy("ClippedDoubleQLearning",
		onlineQ, pi, targets, target, sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &ClippedDoubleQLearning{base}, nil
}
