// Package solver implements solvers that turn gradient trees into
// parameter updates. Solvers hold no parameters themselves: all state
// lives in an explicit state tree threaded through each call, so a
// single solver value can be shared and every update is a pure
// function of its inputs. Solvers can be wrapped so that they can be
// JSON serialized into configuration files.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/samuelfneumann/gotd/tree"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
	RMSProp Type = "RMSProp"
)

// Updater is the contract between a solver and a learner. Init
// returns the solver state for a given parameter tree. Update
// transforms a gradient tree, the current solver state, and the
// current parameters into parameter deltas and the new solver state.
// New parameters are then old parameters plus deltas, see
// ApplyUpdates. Implementations never modify their arguments, and
// every solver state carries a step counter that advances on each
// Update call regardless of the gradient values.
type Updater interface {
	Init(params *tree.Tree) *tree.Tree
	Update(grads, state, params *tree.Tree) (updates *tree.Tree,
		newState *tree.Tree, err error)
}

// ApplyUpdates returns the new parameter tree params + updates.
func ApplyUpdates(params, updates *tree.Tree) (*tree.Tree, error) {
	newParams, err := tree.Add(params, updates)
	if err != nil {
		return nil, fmt.Errorf("applyUpdates: %v", err)
	}
	return newParams, nil
}

// Solver wraps Updaters so that they can be JSON marshalled and
// unmarshalled.
type Solver struct {
	Updater `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Updater = solver.Config.Create()

	return &solver, nil
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
			string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
		})
	if err != nil {
		return err
	}

	s.Type = typeName
	s.Config = config
	s.Updater = s.Config.Create()

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName := m[typeJsonField].(string)
	var value Config
	if ty, found := customTypes[typeName]; found {
		value = reflect.New(ty).Interface().(Config)
	}

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, &value); err != nil {
		return nil, "", err
	}

	return value, Type(typeName), nil
}

// Config implements a solver configuration and can be used to create
// the Updaters they describe.
type Config interface {
	Create() Updater

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
