// Package replay implements experience replay buffers, which record
// environmental transitions and serve batches of them for learner
// updates.
package replay

import (
	"fmt"

	"github.com/samuelfneumann/gotd/transition"
)

// Buffer is a replay buffer of bounded capacity. Transitions are
// stored one at a time, and once the buffer is full each new
// transition overwrites the oldest stored one. Which transitions make
// up a sampled batch is determined by the buffer's Selector.
//
// Transitions are stored in flat caches so that sampling copies
// contiguous rows instead of chasing pointers. The cache of next
// actions is allocated only when the buffer is created to store them,
// since only on-policy learners need the next action of a transition.
type Buffer struct {
	states      []float64
	actions     []float64
	rewards     []float64
	discounts   []float64
	nextStates  []float64
	nextActions []float64

	// position is the index in the ring that the next transition is
	// written to. The buffer holds position transitions until the
	// ring wraps around for the first time and maxCapacity from then
	// on.
	position int
	full     bool

	sampler Selector

	minCapacity int
	maxCapacity int
	features    int
	actionDims  int
}

// New returns an empty replay buffer. The buffer stores at most
// maxCapacity transitions of features state features and actionDims
// action dimensions, and refuses to sample until it holds at least
// minCapacity transitions. Next actions are recorded only if
// includeNextActions is true.
func New(sampler Selector, minCapacity, maxCapacity, features,
	actionDims int, includeNextActions bool) (*Buffer, error) {
	if minCapacity < 1 {
		return nil, fmt.Errorf("new: minimum capacity must be at "+
			"least 1, got %v", minCapacity)
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: cannot have minimum capacity "+
			"(%v) > maximum capacity (%v)", minCapacity, maxCapacity)
	}
	if sampler.BatchSize() > maxCapacity {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > "+
			"maximum capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if features < 1 {
		return nil, fmt.Errorf("new: state features must be at "+
			"least 1, got %v", features)
	}
	if actionDims < 1 {
		return nil, fmt.Errorf("new: action dimensions must be at "+
			"least 1, got %v", actionDims)
	}

	var nextActions []float64
	if includeNextActions {
		nextActions = make([]float64, maxCapacity*actionDims)
	}

	return &Buffer{
		states:      make([]float64, maxCapacity*features),
		actions:     make([]float64, maxCapacity*actionDims),
		rewards:     make([]float64, maxCapacity),
		discounts:   make([]float64, maxCapacity),
		nextStates:  make([]float64, maxCapacity*features),
		nextActions: nextActions,

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		features:    features,
		actionDims:  actionDims,
	}, nil
}

// String satisfies the fmt.Stringer interface
func (b *Buffer) String() string {
	return fmt.Sprintf("Replay buffer of capacity %v/%v with batch "+
		"size %v", b.Capacity(), b.MaxCapacity(), b.BatchSize())
}

// Add records a transition in the buffer, overwriting the oldest
// stored transition if the buffer is full.
func (b *Buffer) Add(t transition.Transition) error {
	if len(t.State) != b.features {
		return fmt.Errorf("add: invalid state size\n\twant(%v)"+
			"\n\thave(%v)", b.features, len(t.State))
	}
	if len(t.NextState) != b.features {
		return fmt.Errorf("add: invalid next state size\n\twant(%v)"+
			"\n\thave(%v)", b.features, len(t.NextState))
	}
	if len(t.Action) != b.actionDims {
		return fmt.Errorf("add: invalid action size\n\twant(%v)"+
			"\n\thave(%v)", b.actionDims, len(t.Action))
	}
	if b.nextActions != nil && len(t.NextAction) != b.actionDims {
		return fmt.Errorf("add: invalid next action size\n\twant(%v)"+
			"\n\thave(%v)", b.actionDims, len(t.NextAction))
	}

	stateInd := b.position * b.features
	copy(b.states[stateInd:stateInd+b.features], t.State)
	copy(b.nextStates[stateInd:stateInd+b.features], t.NextState)

	actionInd := b.position * b.actionDims
	copy(b.actions[actionInd:actionInd+b.actionDims], t.Action)
	if b.nextActions != nil {
		copy(b.nextActions[actionInd:actionInd+b.actionDims],
			t.NextAction)
	}

	b.rewards[b.position] = t.Reward
	b.discounts[b.position] = t.Discount

	b.position = (b.position + 1) % b.maxCapacity
	if b.position == 0 {
		b.full = true
	}
	return nil
}

// Sample draws a batch of stored transitions using the buffer's
// Selector. Sampling an empty buffer or a buffer that has not yet
// reached its minimum capacity returns an *Error which the
// IsEmptyBuffer and IsInsufficientSamples predicates report on.
func (b *Buffer) Sample() (*transition.Batch, error) {
	if b.Capacity() == 0 {
		return nil, &Error{Op: "sample", Err: errEmptyBuffer}
	}
	if b.Capacity() < b.minCapacity {
		return nil, &Error{Op: "sample", Err: errInsufficientSamples}
	}

	indices := b.sampler.choose(b)
	batchSize := len(indices)

	states := make([]float64, batchSize*b.features)
	nextStates := make([]float64, batchSize*b.features)
	actions := make([]float64, batchSize*b.actionDims)
	var nextActions []float64
	if b.nextActions != nil {
		nextActions = make([]float64, batchSize*b.actionDims)
	}
	rewards := make([]float64, batchSize)
	discounts := make([]float64, batchSize)

	for i, index := range indices {
		copy(states[i*b.features:(i+1)*b.features],
			b.states[index*b.features:(index+1)*b.features])
		copy(nextStates[i*b.features:(i+1)*b.features],
			b.nextStates[index*b.features:(index+1)*b.features])
		copy(actions[i*b.actionDims:(i+1)*b.actionDims],
			b.actions[index*b.actionDims:(index+1)*b.actionDims])
		if nextActions != nil {
			copy(nextActions[i*b.actionDims:(i+1)*b.actionDims],
				b.nextActions[index*b.actionDims:(index+1)*b.actionDims])
		}
		rewards[i] = b.rewards[index]
		discounts[i] = b.discounts[index]
	}

	batch, err := transition.NewBatch(states, actions, rewards,
		discounts, nextStates, nextActions, batchSize)
	if err != nil {
		return nil, fmt.Errorf("sample: could not construct batch: %v",
			err)
	}
	return batch, nil
}

// Capacity returns the current number of transitions in the buffer
func (b *Buffer) Capacity() int {
	if b.full {
		return b.maxCapacity
	}
	return b.position
}

// MaxCapacity returns the maximum number of transitions the buffer
// can hold
func (b *Buffer) MaxCapacity() int {
	return b.maxCapacity
}

// MinCapacity returns the number of transitions the buffer must hold
// before sampling is allowed
func (b *Buffer) MinCapacity() int {
	return b.minCapacity
}

// BatchSize returns the number of transitions per sampled batch
func (b *Buffer) BatchSize() int {
	return b.sampler.BatchSize()
}

// oldest returns the indices of the n oldest stored transitions in
// insertion order. Before the ring wraps around, the oldest
// transition is at index 0; afterwards it is the one the next Add
// overwrites.
func (b *Buffer) oldest(n int) []int {
	if n > b.Capacity() {
		n = b.Capacity()
	}

	indices := make([]int, n)
	start := 0
	if b.full {
		start = b.position
	}
	for i := range indices {
		indices[i] = (start + i) % b.maxCapacity
	}
	return indices
}
