package td

import (
	"strconv"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// TDLearningQ is the base of all learners that update an action value
// function q(s, a) towards a bootstrapped target. Concrete learners
// such as Sarsa or QLearning provide the target function; this base
// wires it into the shared update engine.
//
// The aggregated parameter tree holds the online parameters under
// "q" and the target network parameters under "q_targ". A single
// target network contributes its parameter tree directly; an ensemble
// contributes one subtree per network, keyed by index ("0", "1", ...).
// Learners with a target policy add its parameters under "pi_targ",
// and a regularizer adds "reg_pi" and "reg_hparams". The matching
// function state tree uses the same keys.
type TDLearningQ struct {
	*learner
	q      Q
	qTargs []Q
}

// qTargTree aggregates one tree per target network. A single target
// contributes its tree directly so that the common case reads as
// "q_targ" rather than "q_targ/0".
func qTargTree(qTargs []Q, get func(Q) *tree.Tree) *tree.Tree {
	if len(qTargs) == 1 {
		return get(qTargs[0])
	}
	children := make(map[string]*tree.Tree, len(qTargs))
	for i, qt := range qTargs {
		children[strconv.Itoa(i)] = get(qt)
	}
	return tree.NewBranch(children)
}

// qTargAt selects the subtree of target network i from an aggregated
// tree built by qTargTree, undoing the single-target special case.
func qTargAt(aggregate *tree.Tree, i, n int) *tree.Tree {
	sub := aggregate.Get("q_targ")
	if n == 1 {
		return sub
	}
	return sub.Get(strconv.Itoa(i))
}

// newTDLearningQ assembles an action value learner from its target
// function. A nil loss defaults to the Huber loss and a nil solver to
// Adam with step size DefaultStepSize. A non-nil piTarg is aggregated
// under "pi_targ" for target functions that select or weight actions
// with a policy.
func newTDLearningQ(name string, q Q, qTargs []Q, piTarg Policy,
	target TargetFunc, sol solver.Updater, loss Loss,
	reg PolicyRegularizer) (*TDLearningQ, error) {
	loss, sol, err := resolveDefaults("newTDLearningQ", loss, sol)
	if err != nil {
		return nil, err
	}

	targetParams := func() *tree.Tree {
		children := map[string]*tree.Tree{
			"q": q.Params(),
			"q_targ": qTargTree(qTargs, func(qt Q) *tree.Tree {
				return qt.Params()
			}),
		}
		if piTarg != nil {
			children["pi_targ"] = piTarg.Params()
		}
		if reg != nil {
			children["reg_pi"] = reg.Pi().Params()
			children["reg_hparams"] = tree.NewScalars(reg.Hyperparams())
		}
		return tree.NewBranch(children)
	}
	targetState := func() *tree.Tree {
		children := map[string]*tree.Tree{
			"q": q.FunctionState(),
			"q_targ": qTargTree(qTargs, func(qt Q) *tree.Tree {
				return qt.FunctionState()
			}),
		}
		if piTarg != nil {
			children["pi_targ"] = piTarg.FunctionState()
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

		a, err := q.PreprocessActions(b.A)
		if err != nil {
			return nil, nil, nil, err
		}

		pred, newState, err := q.Eval(params, state, rng, b.S, a, true)
		if err != nil {
			return nil, nil, nil, err
		}

		grads, err := q.Grad(params, state, rng, b.S, a,
			loss.Grad(g, pred))
		if err != nil {
			return nil, nil, nil, err
		}

		// The target network values are diagnostic only. They are
		// computed on the current state-action pairs with the online
		// function state so that both predictions differ in
		// parameters alone. An ensemble is summarized by its first
		// network.
		predTarg, _, err := qTargs[0].Eval(
			qTargAt(targetParams, 0, len(qTargs)), state, rng, b.S, a,
			false)
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
		a, err := q.PreprocessActions(b.A)
		if err != nil {
			return nil, err
		}
		pred, _, err := q.Eval(params, state, rng, b.S, a, false)
		if err != nil {
			return nil, err
		}
		return loss.Residuals(g, pred), nil
	}

	base, err := newLearner(name, q, loss, sol, reg, targetParams,
		targetState, gradsAndMetrics, tdError, defaultApplyGrads)
	if err != nil {
		return nil, err
	}
	return &TDLearningQ{learner: base, q: q, qTargs: qTargs}, nil
}

// Q returns the online action value function being learned.
func (l *TDLearningQ) Q() Q {
	return l.q
}

// QTargs returns the action value functions bootstrapped from. It
// holds the online function itself when no target network was given.
func (l *TDLearningQ) QTargs() []Q {
	return l.qTargs
}

// TDLearningQWithTargetPolicy is the base of action value learners
// whose target function selects or weights next actions with a
// separate policy, e.g. QLearning with a policy to be greedy towards
// or ExpectedSarsa. The policy's parameters travel under "pi_targ" in
// the aggregated trees.
type TDLearningQWithTargetPolicy struct {
	*TDLearningQ
	piTarg Policy
}

func newTDLearningQWithTargetPolicy(name string, q Q, piTarg Policy,
	qTargs []Q, target TargetFunc, sol solver.Updater, loss Loss,
	reg PolicyRegularizer) (*TDLearningQWithTargetPolicy, error) {
	base, err := newTDLearningQ(name, q, qTargs, piTarg, target, sol,
		loss, reg)
	if err != nil {
		return nil, err
	}
	return &TDLearningQWithTargetPolicy{TDLearningQ: base,
		piTarg: piTarg}, nil
}

// PiTarg returns the target policy, or nil if the learner bootstraps
// without one.
func (l *TDLearningQWithTargetPolicy) PiTarg() Policy {
	return l.piTarg
}
