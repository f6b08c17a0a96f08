package td

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// SimpleTD learns a state value function with the one-step
// bootstrapped target
//
//	G = R + discount * v_targ(S')
//
// where v_targ is the target network, or the online function itself
// when no target network is given. The discount of a terminal
// transition is zero, so terminal states contribute the reward alone.
type SimpleTD struct {
	*TDLearningV
}

// NewSimpleTD creates a SimpleTD learner for the state value function
// v. A nil vTarg bootstraps from v itself. A nil sol defaults to Adam
// with step size DefaultStepSize and a nil loss to the Huber loss;
// reg may be nil for an unregularized target.
func NewSimpleTD(v, vTarg FuncApprox, sol solver.Updater, loss Loss,
	reg PolicyRegularizer) (*SimpleTD, error) {
	onlineV, targetV, err := vPair("newSimpleTD", v, vTarg)
	if err != nil {
		return nil, err
	}

	target := func(targetParams, targetState *tree.Tree, rng *rand.Rand,
		b *transition.Batch) ([]float64, error) {
		vNext, _, err := targetV.Eval(targetParams.Get("v_targ"),
			targetState.Get("v_targ"), rng, b.SNext, false)
		if err != nil {
			return nil, err
		}

		g := make([]float64, b.BatchSize())
		for i := range g {
			g[i] = b.R[i] + b.Discount[i]*vNext[i]
		}
		return g, nil
	}

	base, err := newTDLearningV("SimpleTD", onlineV, targetV, target,
		sol, loss, reg)
	if err != nil {
		return nil, err
	}
	return &SimpleTD{base}, nil
}
