package solver

import (
	"fmt"

	"github.com/samuelfneumann/gotd/tree"
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	StepSize float64
	Momentum float64 // 0 for plain gradient descent
	Clip     float64 // <= 0 if no clipping
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize, momentum, clip float64) (*Solver, error) {
	vanilla := VanillaConfig{
		StepSize: stepSize,
		Momentum: momentum,
		Clip:     clip,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a new Vanilla Updater as described by the
// VanillaConfig
func (v VanillaConfig) Create() Updater {
	return vanillaUpdater{v}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// vanillaUpdater computes gradient descent updates, optionally with
// momentum, over parameter trees. Its state tree holds the step count
// and the momentum trace.
type vanillaUpdater struct {
	VanillaConfig
}

// Init returns the initial Vanilla state for params: a zero step
// count and a zeroed momentum trace.
func (v vanillaUpdater) Init(params *tree.Tree) *tree.Tree {
	return tree.NewBranch(map[string]*tree.Tree{
		"count": tree.NewScalar(0),
		"trace": tree.ZerosLike(params),
	})
}

// Update returns the (possibly clipped) gradient descent updates for
// grads together with the new solver state. The params argument is
// unused by Vanilla.
func (v vanillaUpdater) Update(grads, state, params *tree.Tree) (*tree.Tree,
	*tree.Tree, error) {
	count := state.Get("count")
	trace := state.Get("trace")
	if count == nil || trace == nil {
		return nil, nil, fmt.Errorf("update: vanilla given a foreign "+
			"state tree\n\twant({count,trace})\n\thave(%v)",
			tree.Structure(state))
	}

	newTrace, err := tree.Combine(trace, grads,
		func(tr, g []float64) []float64 {
			out := make([]float64, len(tr))
			for i := range tr {
				out[i] = v.Momentum*tr[i] + g[i]
			}
			return out
		})
	if err != nil {
		return nil, nil, fmt.Errorf("update: %v", err)
	}

	updates := tree.Map(newTrace, func(tr []float64) []float64 {
		out := make([]float64, len(tr))
		for i := range tr {
			update := -v.StepSize * tr[i]
			if v.Clip > 0 {
				update = floatutils.Clip(update, -v.Clip, v.Clip)
			}
			out[i] = update
		}
		return out
	})

	newState := tree.NewBranch(map[string]*tree.Tree{
		"count": tree.NewScalar(count.Data()[0] + 1),
		"trace": newTrace,
	})
	return updates, newState, nil
}
