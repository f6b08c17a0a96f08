package solver

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotd/tree"
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// RMSPropConfig implements a specific configuration of the RMSProp
// solver
type RMSPropConfig struct {
	StepSize float64
	Epsilon  float64
	Rho      float64 // Decay rate of the squared gradient average
	Clip     float64 // <= 0 if no clipping
}

// NewDefaultRMSProp returns a new RMSProp Solver with default
// hyperparameters
func NewDefaultRMSProp(stepSize float64) (*Solver, error) {
	return NewRMSProp(stepSize, 1e-8, 0.999, -1.0)
}

// NewRMSProp returns a new RMSProp Solver
func NewRMSProp(stepSize, epsilon, rho, clip float64) (*Solver, error) {
	rmsprop := RMSPropConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Rho:      rho,
		Clip:     clip,
	}

	return newSolver(RMSProp, rmsprop)
}

// Create returns a new RMSProp Updater as described by the
// RMSPropConfig
func (r RMSPropConfig) Create() Updater {
	return rmsPropUpdater{r}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (r RMSPropConfig) ValidType(t Type) bool {
	return t == RMSProp
}

// rmsPropUpdater computes RMSProp updates over parameter trees. Its
// state tree holds the step count and the running average of squared
// gradients.
type rmsPropUpdater struct {
	RMSPropConfig
}

// Init returns the initial RMSProp state for params: a zero step
// count and a zeroed squared gradient average.
func (r rmsPropUpdater) Init(params *tree.Tree) *tree.Tree {
	return tree.NewBranch(map[string]*tree.Tree{
		"count":   tree.NewScalar(0),
		"squared": tree.ZerosLike(params),
	})
}

// Update returns the (possibly clipped) RMSProp updates for grads
// together with the new solver state. The params argument is unused
// by RMSProp.
func (r rmsPropUpdater) Update(grads, state, params *tree.Tree) (*tree.Tree,
	*tree.Tree, error) {
	count := state.Get("count")
	squared := state.Get("squared")
	if count == nil || squared == nil {
		return nil, nil, fmt.Errorf("update: rmsprop given a foreign "+
			"state tree\n\twant({count,squared})\n\thave(%v)",
			tree.Structure(state))
	}

	newSquared, err := tree.Combine(squared, grads,
		func(s, g []float64) []float64 {
			out := make([]float64, len(s))
			for i := range s {
				out[i] = r.Rho*s[i] + (1-r.Rho)*g[i]*g[i]
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	updates, err := tree.Combine(grads, newSquared,
		func(g, s []float64) []float64 {
			out := make([]float64, len(g))
			for i := range g {
				update := -r.StepSize * g[i] / (math.Sqrt(s[i]) + r.Epsilon)
				if r.Clip > 0 {
					update = floatutils.Clip(update, -r.Clip, r.Clip)
				}
				out[i] = update
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	newState := tree.NewBranch(map[string]*tree.Tree{
		"count":   tree.NewScalar(count.Data()[0] + 1),
		"squared": newSquared,
	})
	return updates, newState, nil
}
