// Package transition describes batches of environment transitions.
// A transition records a state, the action taken in it, the reward
// and discount that followed, and the next state, optionally with the
// next action for on-policy targets. Batches store their fields as
// flat row-major slices, the layout function approximators consume
// directly. Batches are read-only once constructed: learners only
// ever read them.
package transition

import "fmt"

// Batch is an immutable batch of transitions. The Discount field
// folds episode termination: a terminal transition carries discount
// 0, so bootstrapped targets vanish there without a separate done
// flag. ANext is nil when next actions were not recorded.
type Batch struct {
	S        []float64
	A        []float64
	R        []float64
	Discount []float64
	SNext    []float64
	ANext    []float64

	batchSize  int
	features   int
	actionDims int
}

// NewBatch validates and returns a batch of batchSize transitions.
// The state fields must have batchSize rows of a consistent feature
// length, the action fields batchSize rows of a consistent action
// length, and r and discount one value per transition. aNext may be
// nil.
func NewBatch(s, a, r, discount, sNext, aNext []float64,
	batchSize int) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("newBatch: batch size must be positive, "+
			"got %v", batchSize)
	}
	if len(s) == 0 || len(s)%batchSize != 0 {
		return nil, fmt.Errorf("newBatch: cannot split %v state values "+
			"into %v rows", len(s), batchSize)
	}
	if len(sNext) != len(s) {
		return nil, fmt.Errorf("newBatch: state and next state sizes "+
			"differ\n\twant(%v)\n\thave(%v)", len(s), len(sNext))
	}
	if len(a) == 0 || len(a)%batchSize != 0 {
		return nil, fmt.Errorf("newBatch: cannot split %v action values "+
			"into %v rows", len(a), batchSize)
	}
	if aNext != nil && len(aNext) != len(a) {
		return nil, fmt.Errorf("newBatch: action and next action sizes "+
			"differ\n\twant(%v)\n\thave(%v)", len(a), len(aNext))
	}
	if len(r) != batchSize {
		return nil, fmt.Errorf("newBatch: need %v rewards, got %v",
			batchSize, len(r))
	}
	if len(discount) != batchSize {
		return nil, fmt.Errorf("newBatch: need %v discounts, got %v",
			batchSize, len(discount))
	}

	return &Batch{
		S:          s,
		A:          a,
		R:          r,
		Discount:   discount,
		SNext:      sNext,
		ANext:      aNext,
		batchSize:  batchSize,
		features:   len(s) / batchSize,
		actionDims: len(a) / batchSize,
	}, nil
}

// BatchSize returns the number of transitions in the batch.
func (b *Batch) BatchSize() int {
	return b.batchSize
}

// Features returns the number of state features per transition.
func (b *Batch) Features() int {
	return b.features
}

// ActionDims returns the number of action dimensions per transition.
func (b *Batch) ActionDims() int {
	return b.actionDims
}

// HasNextAction returns whether next actions were recorded.
func (b *Batch) HasNextAction() bool {
	return b.ANext != nil
}

// StateAt returns the i'th state row. The returned slice aliases the
// batch and must not be modified.
func (b *Batch) StateAt(i int) []float64 {
	return b.S[i*b.features : (i+1)*b.features]
}

// NextStateAt returns the i'th next state row. The returned slice
// aliases the batch and must not be modified.
func (b *Batch) NextStateAt(i int) []float64 {
	return b.SNext[i*b.features : (i+1)*b.features]
}

// ActionAt returns the i'th action row. The returned slice aliases
// the batch and must not be modified.
func (b *Batch) ActionAt(i int) []float64 {
	return b.A[i*b.actionDims : (i+1)*b.actionDims]
}

// Transition is a single recorded transition, the row form of a
// Batch.
type Transition struct {
	State      []float64
	Action     []float64
	Reward     float64
	Discount   float64
	NextState  []float64
	NextAction []float64
}

// Row returns the i'th transition of the batch. The slices alias the
// batch and must not be modified.
func (b *Batch) Row(i int) Transition {
	t := Transition{
		State:     b.StateAt(i),
		Action:    b.ActionAt(i),
		Reward:    b.R[i],
		Discount:  b.Discount[i],
		NextState: b.NextStateAt(i),
	}
	if b.HasNextAction() {
		t.NextAction = b.ANext[i*b.actionDims : (i+1)*b.actionDims]
	}
	return t
}

// FromTransitions packs transitions into a batch. All transitions
// must have the same state and action sizes. Next actions are kept
// only if the first transition has one.
func FromTransitions(transitions []Transition) (*Batch, error) {
	if len(transitions) == 0 {
		return nil, fmt.Errorf("fromTransitions: no transitions given")
	}

	batchSize := len(transitions)
	features := len(transitions[0].State)
	actionDims := len(transitions[0].Action)
	withNext := transitions[0].NextAction != nil

	s := make([]float64, 0, batchSize*features)
	a := make([]float64, 0, batchSize*actionDims)
	r := make([]float64, 0, batchSize)
	discount := make([]float64, 0, batchSize)
	sNext := make([]float64, 0, batchSize*features)
	var aNext []float64
	if withNext {
		aNext = make([]float64, 0, batchSize*actionDims)
	}

	for i, t := range transitions {
		if len(t.State) != features || len(t.NextState) != features {
			return nil, fmt.Errorf("fromTransitions: inconsistent state "+
				"size at row %v", i)
		}
		if len(t.Action) != actionDims {
			return nil, fmt.Errorf("fromTransitions: inconsistent action "+
				"size at row %v", i)
		}
		if withNext && len(t.NextAction) != actionDims {
			return nil, fmt.Errorf("fromTransitions: inconsistent next "+
				"action size at row %v", i)
		}

		s = append(s, t.State...)
		a = append(a, t.Action...)
		r = append(r, t.Reward)
		discount = append(discount, t.Discount)
		sNext = append(sNext, t.NextState...)
		if withNext {
			aNext = append(aNext, t.NextAction...)
		}
	}

	return NewBatch(s, a, r, discount, sNext, aNext, batchSize)
}
