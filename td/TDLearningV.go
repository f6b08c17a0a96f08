package td

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// TDLearningV is the base of all learners that update a state value
// function v(s) towards a bootstrapped target. Concrete learners such
// as SimpleTD provide the target function; this base wires it into the
// shared update engine.
//
// The target function and regularizer never see the online and target
// networks directly. They read from an aggregated parameter tree with
// the online parameters under "v", the target network parameters
// under "v_targ", and, when a regularizer is used, the regularizer's
// policy parameters under "reg_pi" and its hyperparameters under
// "reg_hparams". The matching function state tree uses the same keys.
type TDLearningV struct {
	*learner
	v     V
	vTarg V
}

// newTDLearningV assembles a state value learner from its target
// function. A nil loss defaults to the Huber loss and a nil solver to
// Adam with step size DefaultStepSize.
func newTDLearningV(name string, v, vTarg V, target TargetFunc,
	sol solver.Updater, loss Loss, reg PolicyRegularizer) (*TDLearningV,
	error) {
	loss, sol, err := resolveDefaults("newTDLearningV", loss, sol)
	if err != nil {
		return nil, err
	}

	targetParams := func() *tree.Tree {
		children := map[string]*tree.Tree{
			"v":      v.Params(),
			"v_targ": vTarg.Params(),
		}
		if reg != nil {
			children["reg_pi"] = reg.Pi().Params()
			children["reg_hparams"] = tree.NewScalars(reg.Hyperparams())
		}
		return tree.NewBranch(children)
	}
	targetState := func() *tree.Tree {
		children := map[string]*tree.Tree{
			"v":      v.FunctionState(),
			"v_targ": vTarg.FunctionState(),
		}
		if reg != nil {
			children["reg_pi"] = reg.Pi().FunctionState()
		}
		return tree.NewBranch(children)
	}

	gradsAndMetrics := func(params, targetParams, state,
		targetState *tree.Tree, rng *rand.Rand, b *transition.Batch) (
		*tree.Tree, *tree.Tree, Metrics, error) {
		g, err := computeTarget(target, reg, targetParams, targetState,
			rng, b)
		if err != nil {
			return nil, nil, nil, err
		}

		pred, newState, err := v.Eval(params, state, rng, b.S, true)
		if err != nil {
			return nil, nil, nil, err
		}

		grads, err := v.Grad(params, state, rng, b.S, loss.Grad(g, pred))
		if err != nil {
			return nil, nil, nil, err
		}

		// The target network values are diagnostic only. They are
		// computed on the current states with the online function
		// state so that both predictions differ in parameters alone.
		predTarg, _, err := vTarg.Eval(targetParams.Get("v_targ"), state,
			rng, b.S, false)
		if err != nil {
			return nil, nil, nil, err
		}

		metrics := residualMetrics(name, loss.Value(g, pred), pred, g,
			predTarg, grads)
		return grads, newState, metrics, nil
	}

	tdError := func(params, targetParams, state, targetState *tree.Tree,
		rng *rand.Rand, b *transition.Batch) ([]float64, error) {
		g, err := computeTarget(target, reg, targetParams, targetState,
			rng, b)
		if err != nil {
			return nil, err
		}
		pred, _, err := v.Eval(params, state, rng, b.S, false)
		if err != nil {
			return nil, err
		}
		return loss.Residuals(g, pred), nil
	}

	base, err := newLearner(name, v, loss, sol, reg, targetParams,
		targetState, gradsAndMetrics, tdError, defaultApplyGrads)
	if err != nil {
		return nil, err
	}
	return &TDLearningV{learner: base, v: v, vTarg: vTarg}, nil
}

// V returns the online state value function being learned.
func (l *TDLearningV) V() V {
	return l.v
}

// VTarg returns the state value function bootstrapped from. It is the
// online function itself when no target network was given.
func (l *TDLearningV) VTarg() V {
	return l.vTarg
}
