package td

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// Sarsa learns an action value function with the on-policy target
//
//	G = R + discount * q_targ(S', A')
//
// where A' is the next action the behaviour policy actually took.
// Batches updated with Sarsa must carry next actions.
type Sarsa struct {
	*TDLearningQ
}

// NewSarsa creates a Sarsa learner for the action value function q.
// A nil qTarg bootstraps from q itself. A nil sol defaults to Adam
// with step size DefaultStepSize and a nil loss to the Huber loss;
// reg may be nil for an unregularized target.
func NewSarsa(q, qTarg FuncApprox, sol solver.Updater, loss Loss,
	reg PolicyRegularizer) (*Sarsa, error) {
	onlineQ, targets, err := qPair("newSarsa", q, qTarg)
	if err != nil {
		return nil, err
	}
	targetQ := targets[0]

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		if !b.HasNextAction() {
			return nil, fmt.Errorf("sarsa: batch has no next actions")
		}

		aNext, err := targetQ.PreprocessActions(b.ANext)
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

	base, err := newTDLearningQ("Sarsa", onlineQ, targets, nil, target,
		sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &Sarsa{base}, nil
}
