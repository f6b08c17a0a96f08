package solver

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotd/tree"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64) (*Solver, error) {
	adam := AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
	}

	return newSolver(Adam, adam)
}

// Create returns a new Adam Updater as described by the AdamConfig
func (a AdamConfig) Create() Updater {
	return adamUpdater{a}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// adamUpdater computes Adam updates over parameter trees. Its state
// tree holds the step count and the first and second moment estimates
// of the gradients, the latter two mirroring the parameter tree's
// structure.
type adamUpdater struct {
	AdamConfig
}

// Init returns the initial Adam state for params: a zero step count
// and zeroed moment estimates.
func (a adamUpdater) Init(params *tree.Tree) *tree.Tree {
	return tree.NewBranch(map[string]*tree.Tree{
		"count": tree.NewScalar(0),
		"mu":    tree.ZerosLike(params),
		"nu":    tree.ZerosLike(params),
	})
}

// Update returns the bias-corrected Adam updates for grads together
// with the new solver state. The params argument is unused by Adam.
func (a adamUpdater) Update(grads, state, params *tree.Tree) (*tree.Tree,
	*tree.Tree, error) {
	count := state.Get("count")
	mu := state.Get("mu")
	nu := state.Get("nu")
	if count == nil || mu == nil || nu == nil {
		return nil, nil, fmt.Errorf("update: adam given a foreign "+
			"state tree\n\twant({count,mu,nu})\n\thave(%v)",
			tree.Structure(state))
	}

	newMu, err := tree.Combine(mu, grads,
		func(m, g []float64) []float64 {
			out := make([]float64, len(m))
			for i := range m {
				out[i] = a.Beta1*m[i] + (1-a.Beta1)*g[i]
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	newNu, err := tree.Combine(nu, grads,
		func(n, g []float64) []float64 {
			out := make([]float64, len(n))
			for i := range n {
				out[i] = a.Beta2*n[i] + (1-a.Beta2)*g[i]*g[i]
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	t := count.Data()[0] + 1
	correction1 := 1 - math.Pow(a.Beta1, t)
	correction2 := 1 - math.Pow(a.Beta2, t)

	updates, err := tree.Combine(newMu, newNu,
		func(m, n []float64) []float64 {
			out := make([]float64, len(m))
			for i := range m {
				mHat := m[i] / correction1
				nHat := n[i] / correction2
				out[i] = -a.StepSize * mHat / (math.Sqrt(nHat) + a.Epsilon)
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	newState := tree.NewBranch(map[string]*tree.Tree{
		"count": tree.NewScalar(t),
		"mu":    newMu,
		"nu":    newNu,
	})
	return updates, newState, nil
}
