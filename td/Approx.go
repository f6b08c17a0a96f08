package td

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gotd/tree"
)

// FuncApprox is the capability set shared by all function
// approximators a learner can train or bootstrap from. Parameters and
// function state are exposed as immutable trees: setters replace the
// whole tree, and the previous tree stays valid for anyone still
// holding it.
type FuncApprox interface {
	// Params returns the current parameters
	Params() *tree.Tree

	// SetParams replaces the current parameters. The new tree must
	// have the same structure as the current one.
	SetParams(*tree.Tree) error

	// FunctionState returns the auxiliary state produced by forward
	// passes, e.g. normalization statistics. Approximators without
	// such state return an empty tree.
	FunctionState() *tree.Tree

	// SetFunctionState replaces the function state. The new tree must
	// have the same structure as the current one.
	SetFunctionState(*tree.Tree) error

	// RNG returns the approximator's random number stream
	RNG() *rand.Rand
}

// V is a state value function approximator. Forward passes are pure:
// they read the parameters and state they are given, never the ones
// held by the receiver.
type V interface {
	FuncApprox

	// Eval computes the value of each state in the flat row-major
	// batch s at the given parameters, returning one value per row
	// together with the new function state. When train is true the
	// forward pass may update state statistics; the receiver is
	// never modified either way.
	Eval(params, state *tree.Tree, rng *rand.Rand, s []float64,
		train bool) ([]float64, *tree.Tree, error)

	// Grad backpropagates the loss derivative dLdV through the
	// forward pass at the given parameters, returning the gradient
	// of the loss with respect to every parameter leaf.
	Grad(params, state *tree.Tree, rng *rand.Rand, s []float64,
		dLdV []float64) (*tree.Tree, error)

	// Features returns the number of state features expected per row
	Features() int
}

// Q is a state-action value function approximator for discrete
// actions. Eval is the type-1 calling convention, taking states and
// preprocessed actions jointly; EvalAll is the type-2 convention,
// returning the values of all actions for each state.
type Q interface {
	FuncApprox

	// Eval computes the value of each (state, action) pair, one value
	// per row. Actions must already be preprocessed, see
	// PreprocessActions.
	Eval(params, state *tree.Tree, rng *rand.Rand, s, a []float64,
		train bool) ([]float64, *tree.Tree, error)

	// EvalAll computes the values of all actions for each state,
	// returning a flat row-major (batch x NumActions) slice.
	EvalAll(params, state *tree.Tree, rng *rand.Rand, s []float64,
		train bool) ([]float64, *tree.Tree, error)

	// Grad backpropagates the loss derivative dLdQ through the type-1
	// forward pass at the given parameters.
	Grad(params, state *tree.Tree, rng *rand.Rand, s, a []float64,
		dLdQ []float64) (*tree.Tree, error)

	// PreprocessActions converts raw actions, one action index per
	// transition, into the form Eval consumes, e.g. one-hot vectors.
	PreprocessActions(a []float64) ([]float64, error)

	// Features returns the number of state features expected per row
	Features() int

	// NumActions returns the number of discrete actions
	NumActions() int
}

// Policy is a parameterized policy. Learners never train policies:
// they only evaluate distribution parameters for target computation
// and regularization.
type Policy interface {
	FuncApprox

	// Eval computes the policy's distribution parameters for each
	// state, returning a flat row-major (batch x Outputs) slice.
	Eval(params, state *tree.Tree, rng *rand.Rand, s []float64,
		train bool) ([]float64, *tree.Tree, error)

	// Features returns the number of state features expected per row
	Features() int

	// Outputs returns the number of distribution parameters per state
	Outputs() int
}
