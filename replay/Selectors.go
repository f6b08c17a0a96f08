package replay

import "golang.org/x/exp/rand"

// Selector chooses which stored transitions a Buffer includes in a
// sampled batch.
type Selector interface {
	// choose selects the indices of the transitions in the next
	// sampled batch
	choose(b *Buffer) []int

	// BatchSize returns the number of transitions chosen per batch
	BatchSize() int
}

// uniformSelector draws indices uniformly randomly, with replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a Selector that draws samples
// transitions uniformly randomly from a Buffer, with replacement.
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples selected per batch
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects the indices of the transitions in the next batch.
// Transitions in use always occupy the indices [0, b.Capacity()), so
// a uniform draw over that range is a uniform draw over the stored
// transitions.
func (u *uniformSelector) choose(b *Buffer) []int {
	selected := make([]int, u.BatchSize())
	for i := range selected {
		selected[i] = u.rng.Intn(b.Capacity())
	}
	return selected
}

// fifoSelector draws the oldest stored transitions, oldest first
type fifoSelector struct {
	samples int
}

// NewFifoSelector returns a Selector that draws the oldest samples
// transitions from a Buffer in insertion order.
func NewFifoSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// BatchSize gets the number of samples selected per batch
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

// choose selects the indices of the transitions in the next batch
func (f *fifoSelector) choose(b *Buffer) []int {
	return b.oldest(f.BatchSize())
}
