// Package td implements temporal difference learning updates for
// state value and action value functions. A learner turns a batch of
// transitions into a parameter update by computing a bootstrapped
// regression target, differentiating a loss between the target and
// the online prediction, and applying a solver step, reporting
// diagnostic metrics along the way.
//
// The computational pipeline is built from pure functions: every
// forward pass, gradient, and solver step is a function of the
// parameter trees it is given, never of hidden state. A learner only
// mutates itself at the very end of an update, so a failed update
// leaves it exactly as it was.
package td

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/solver"
	"github.com/samuelfneumann/gotd/transition"
	"github.com/samuelfneumann/gotd/tree"
)

// DefaultStepSize is the step size of the solver a learner creates
// when none is given.
const DefaultStepSize float64 = 1e-3

// DefaultHuberDelta is the threshold of the Huber loss a learner uses
// when no loss is given.
const DefaultHuberDelta float64 = 1.0

// TargetFunc computes the bootstrap target of a batch, one value per
// transition, using only the aggregated target parameters and state,
// e.g. R + discount * v(S') at the target network's parameters.
// Implementations must be pure and return a fresh slice.
type TargetFunc func(targetParams, targetState *tree.Tree,
	rng *rand.Rand, b *transition.Batch) ([]float64, error)

// gradsAndMetricsFunc differentiates the loss at the given parameters
// over a batch, returning the gradient tree, the new function state,
// and the update metrics. Implementations are pure.
type gradsAndMetricsFunc func(params, targetParams, state,
	targetState *tree.Tree, rng *rand.Rand, b *transition.Batch) (
	*tree.Tree, *tree.Tree, Metrics, error)

// tdErrorFunc computes the TD error of a batch at the given
// parameters, one value per transition. Implementations are pure.
type tdErrorFunc func(params, targetParams, state, targetState *tree.Tree,
	rng *rand.Rand, b *transition.Batch) ([]float64, error)

// applyGradsFunc runs one solver step, returning the new solver state
// and the new parameters. Implementations are pure.
type applyGradsFunc func(sol solver.Updater, solverState, params,
	grads *tree.Tree) (*tree.Tree, *tree.Tree, error)

// NonFiniteError reports gradients containing NaN or infinite values,
// a fatal sign that learning has numerically diverged. The update
// that produced it left the learner untouched. The offending gradient
// tree is carried for diagnosis.
type NonFiniteError struct {
	Op    string
	Grads *tree.Tree
}

// Error implements the error interface
func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("%v: found non-finite values in gradients:\n%v",
		e.Op, e.Grads)
}

// learner is the engine shared by all TD learners. It owns the online
// function approximator, the solver and its state, and the pure
// computation functions installed by each variant. The variants
// differ only in how those functions aggregate and thread parameters;
// the update protocol lives here.
type learner struct {
	name string
	f    FuncApprox
	loss Loss
	reg  PolicyRegularizer

	sol      solver.Updater
	solState *tree.Tree

	targetParamsFunc func() *tree.Tree
	targetStateFunc  func() *tree.Tree

	gradsAndMetrics gradsAndMetricsFunc
	tdError         tdErrorFunc
	applyGrads      applyGradsFunc
}

// newLearner validates the assembled engine and initializes the
// solver state from the online approximator's current parameters.
// Solver state creation is the last step, so no state exists if
// validation fails.
func newLearner(name string, f FuncApprox, loss Loss,
	sol solver.Updater, reg PolicyRegularizer,
	targetParams, targetState func() *tree.Tree,
	gradsAndMetrics gradsAndMetricsFunc, tdError tdErrorFunc,
	applyGrads applyGradsFunc) (*learner, error) {
	if name == "" {
		return nil, fmt.Errorf("newLearner: no name given")
	}
	if f == nil {
		return nil, fmt.Errorf("newLearner: no function approximator " +
			"given")
	}
	if reg != nil && reg.Pi() == nil {
		return nil, fmt.Errorf("newLearner: policy regularizer has no " +
			"policy")
	}

	l := &learner{
		name:             name,
		f:                f,
		loss:             loss,
		reg:              reg,
		sol:              sol,
		targetParamsFunc: targetParams,
		targetStateFunc:  targetState,
		gradsAndMetrics:  gradsAndMetrics,
		tdError:          tdError,
		applyGrads:       applyGrads,
	}
	l.solState = sol.Init(f.Params())
	return l, nil
}

// Name returns the learner's name, which namespaces its metrics.
func (l *learner) Name() string {
	return l.name
}

// Update performs a single TD update on a batch of transitions and
// returns the update's metrics. If any computed gradient is NaN or
// infinite, Update returns a *NonFiniteError and leaves the learner's
// parameters, function state, and solver state untouched.
func (l *learner) Update(b *transition.Batch) (Metrics, error) {
	grads, functionState, metrics, err := l.GradsAndMetrics(b)
	if err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}

	if tree.HasNonFinite(grads) {
		return nil, &NonFiniteError{Op: "update", Grads: grads}
	}

	if err := l.UpdateFromGrads(grads, functionState); err != nil {
		return nil, fmt.Errorf("update: %v", err)
	}
	return metrics, nil
}

// UpdateFromGrads applies externally computed gradients, for
// deployments that offload gradient computation to separate workers:
// the function state is stored, then one solver step produces the new
// solver state and online parameters. All computation happens before
// any mutation.
func (l *learner) UpdateFromGrads(grads, functionState *tree.Tree) error {
	if grads == nil {
		return fmt.Errorf("updateFromGrads: no gradients given")
	}

	newSolState, newParams, err := l.applyGrads(l.sol, l.solState,
		l.f.Params(), grads)
	if err != nil {
		return fmt.Errorf("updateFromGrads: %v", err)
	}

	if functionState != nil {
		if err := l.f.SetFunctionState(functionState); err != nil {
			return fmt.Errorf("updateFromGrads: %v", err)
		}
	}
	if err := l.f.SetParams(newParams); err != nil {
		return fmt.Errorf("updateFromGrads: %v", err)
	}
	l.solState = newSolState
	return nil
}

// GradsAndMetrics computes the gradients, new function state, and
// metrics for a batch without mutating the learner. Calling it twice
// with the same learner state and batch yields identical results.
func (l *learner) GradsAndMetrics(b *transition.Batch) (*tree.Tree,
	*tree.Tree, Metrics, error) {
	if b == nil {
		return nil, nil, nil, fmt.Errorf("gradsAndMetrics: no batch " +
			"given")
	}
	return l.gradsAndMetrics(l.f.Params(), l.TargetParams(),
		l.f.FunctionState(), l.TargetFunctionState(), l.f.RNG(), b)
}

// TDError computes the TD error of each transition in the batch: the
// negative derivative of the loss with respect to the prediction.
// For a squared error loss this is exactly target - prediction. The
// learner is not mutated.
func (l *learner) TDError(b *transition.Batch) ([]float64, error) {
	if b == nil {
		return nil, fmt.Errorf("tdError: no batch given")
	}
	return l.tdError(l.f.Params(), l.TargetParams(), l.f.FunctionState(),
		l.TargetFunctionState(), l.f.RNG(), b)
}

// Solver returns the learner's solver.
func (l *learner) Solver() solver.Updater {
	return l.sol
}

// SetSolver replaces the learner's solver. The new solver's
// initialized state must have the same tree structure as the current
// solver state, otherwise the accumulated state would silently be
// discarded; a mismatch fails without changing the solver or its
// state. On success the existing solver state is kept, so moment
// estimates survive the swap.
func (l *learner) SetSolver(sol solver.Updater) error {
	if sol == nil {
		return fmt.Errorf("setSolver: no solver given")
	}

	newState := sol.Init(l.f.Params())
	if !tree.SameStructure(newState, l.solState) {
		return fmt.Errorf("setSolver: new solver state is incompatible "+
			"with the current solver state\n\twant(%v)\n\thave(%v)",
			tree.Structure(l.solState), tree.Structure(newState))
	}

	l.sol = sol
	return nil
}

// SolverState returns the learner's current solver state.
func (l *learner) SolverState() *tree.Tree {
	return l.solState
}

// SetSolverState replaces the learner's solver state.
func (l *learner) SetSolverState(state *tree.Tree) {
	l.solState = state
}

// TargetParams returns the aggregated parameter tree needed to
// evaluate the learner's target function and regularizer, assembled
// from the current parameters of the online, target, and policy
// networks.
func (l *learner) TargetParams() *tree.Tree {
	return l.targetParamsFunc()
}

// TargetFunctionState returns the aggregated function state tree
// accompanying TargetParams.
func (l *learner) TargetFunctionState() *tree.Tree {
	return l.targetStateFunc()
}

// Hyperparams returns the learner's tunable hyperparameters. The base
// learner exposes none.
func (l *learner) Hyperparams() map[string]float64 {
	return map[string]float64{}
}

// defaultApplyGrads is the solver step shared by all variants: the
// solver turns gradients into updates and new parameters are the old
// ones plus the updates.
func defaultApplyGrads(sol solver.Updater, solverState, params,
	grads *tree.Tree) (*tree.Tree, *tree.Tree, error) {
	updates, newSolverState, err := sol.Update(grads, solverState, params)
	if err != nil {
		return nil, nil, err
	}
	newParams, err := solver.ApplyUpdates(params, updates)
	if err != nil {
		return nil, nil, err
	}
	return newSolverState, newParams, nil
}

// computeTarget evaluates the bootstrap target and, when a
// regularizer is configured, subtracts the regularizer's output from
// it. The regularizer's policy is evaluated on the batch's current
// states at the aggregated "reg_pi" parameters. A regularizer whose
// output size differs from the target's violates the regularizer
// contract and panics.
func computeTarget(target TargetFunc, reg PolicyRegularizer,
	targetParams, targetState *tree.Tree, rng *rand.Rand,
	b *transition.Batch) ([]float64, error) {
	g, err := target(targetParams, targetState, rng, b)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return g, nil
	}

	distParams, _, err := reg.Pi().Eval(targetParams.Get("reg_pi"),
		targetState.Get("reg_pi"), rng, b.S, false)
	if err != nil {
		return nil, err
	}

	adjustment, err := reg.Apply(distParams,
		targetParams.Get("reg_hparams"))
	if err != nil {
		return nil, err
	}
	if len(adjustment) != len(g) {
		panic(fmt.Sprintf("computeTarget: regularizer output size does "+
			"not match target size\n\twant(%v)\n\thave(%v)", len(g),
			len(adjustment)))
	}

	for i := range g {
		g[i] -= adjustment[i]
	}
	return g, nil
}

// resolveDefaults fills in the default loss and solver for a variant
// constructor.
func resolveDefaults(op string, loss Loss, sol solver.Updater) (Loss,
	solver.Updater, error) {
	if loss == nil {
		loss = NewHuber(DefaultHuberDelta)
	}
	if sol == nil {
		s, err := solver.NewDefaultAdam(DefaultStepSize)
		if err != nil {
			return nil, nil, fmt.Errorf("%v: %v", op, err)
		}
		sol = s
	}
	return loss, sol, nil
}

// vPair asserts that the online and target approximators are state
// value functions. A nil target defaults to the online function
// itself, bootstrapping from the learned values directly.
func vPair(op string, v, vTarg FuncApprox) (V, V, error) {
	if v == nil {
		return nil, nil, fmt.Errorf("%v: no value function given", op)
	}
	onlineV, ok := v.(V)
	if !ok {
		return nil, nil, fmt.Errorf("%v: v must be a state value "+
			"function, got %T", op, v)
	}

	if vTarg == nil {
		return onlineV, onlineV, nil
	}
	targetV, ok := vTarg.(V)
	if !ok {
		return nil, nil, fmt.Errorf("%v: vTarg must be a state value "+
			"function, got %T", op, vTarg)
	}
	return onlineV, targetV, nil
}

// qList asserts that the online approximator and every target
// approximator are action value functions. A nil or empty target list
// defaults to the online function itself.
func qList(op string, q FuncApprox, qTarg []FuncApprox) (Q, []Q, error) {
	if q == nil {
		return nil, nil, fmt.Errorf("%v: no action value function given",
			op)
	}
	onlineQ, ok := q.(Q)
	if !ok {
		return nil, nil, fmt.Errorf("%v: q must be an action value "+
			"function, got %T", op, q)
	}

	if len(qTarg) == 0 {
		return onlineQ, []Q{onlineQ}, nil
	}

	targets := make([]Q, len(qTarg))
	for i, qt := range qTarg {
		target, ok := qt.(Q)
		if !ok {
			return nil, nil, fmt.Errorf("%v: qTarg must be an action "+
				"value function, got %T", op, qt)
		}
		if target.NumActions() != onlineQ.NumActions() {
			return nil, nil, fmt.Errorf("%v: action count mismatch "+
				"between online and target value functions"+
				"\n\twant(%v)\n\thave(%v)", op, onlineQ.NumActions(),
				target.NumActions())
		}
		targets[i] = target
	}
	return onlineQ, targets, nil
}

// qPair asserts a single online and a single optional target action
// value function, in the layout qList produces.
func qPair(op string, q, qTarg FuncApprox) (Q, []Q, error) {
	if qTarg == nil {
		return qList(op, q, nil)
	}
	return qList(op, q, []FuncApprox{qTarg})
}

// policyOrNil asserts that p, if given, is a policy.
func policyOrNil(op string, p FuncApprox) (Policy, error) {
	if p == nil {
		return nil, nil
	}
	pi, ok := p.(Policy)
	if !ok {
		return nil, fmt.Errorf("%v: piTarg must be a policy, got %T",
			op, p)
	}
	return pi, nil
}
