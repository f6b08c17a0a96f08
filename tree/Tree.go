// Package tree implements immutable trees of named numeric arrays.
// Trees hold the learnable parameters, function state, gradients, and
// solver state of function approximators. A tree is either a leaf,
// wrapping a single float64 tensor, or a branch, mapping string keys
// to subtrees. Operations on trees never modify their arguments and
// always return freshly allocated trees.
package tree

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gorgonia.org/tensor"
)

// Tree is an immutable tree of float64 tensors. The zero value is not
// usable; construct trees with NewLeaf, NewScalar, NewVector,
// NewMatrix, NewScalars, or NewBranch.
type Tree struct {
	leaf     *tensor.Dense
	branches map[string]*Tree
}

// NewLeaf returns a leaf tree wrapping t. The tree takes ownership of
// t, which must be a non-nil float64 tensor with at least one
// dimension. Callers should not modify t afterwards.
func NewLeaf(t *tensor.Dense) *Tree {
	if t == nil {
		panic("newLeaf: no tensor given")
	}
	if t.Dtype() != tensor.Float64 {
		panic(fmt.Sprintf("newLeaf: tensor must hold float64, got %v",
			t.Dtype()))
	}
	if len(t.Shape()) == 0 {
		panic("newLeaf: scalar tensors not supported, use shape (1)")
	}
	return &Tree{leaf: t}
}

// NewScalar returns a leaf tree holding the single value v, stored
// with shape (1) so that every leaf's backing data is a []float64.
func NewScalar(v float64) *Tree {
	return NewVector([]float64{v})
}

// NewVector returns a leaf tree holding a copy of data as a vector.
func NewVector(data []float64) *Tree {
	backing := make([]float64, len(data))
	copy(backing, data)
	return NewLeaf(tensor.New(
		tensor.WithShape(len(backing)),
		tensor.WithBacking(backing),
	))
}

// NewMatrix returns a leaf tree holding a copy of data as an (r x c)
// row-major matrix.
func NewMatrix(r, c int, data []float64) *Tree {
	if len(data) != r*c {
		panic(fmt.Sprintf("newMatrix: cannot reshape %d values into "+
			"(%d, %d)", len(data), r, c))
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return NewLeaf(tensor.New(
		tensor.WithShape(r, c),
		tensor.WithBacking(backing),
	))
}

// NewScalars returns a branch tree with one scalar leaf per entry of
// values. Useful for hyperparameter collections.
func NewScalars(values map[string]float64) *Tree {
	branches := make(map[string]*Tree, len(values))
	for key, v := range values {
		branches[key] = NewScalar(v)
	}
	return &Tree{branches: branches}
}

// NewBranch returns a branch tree with the given children. The child
// map is copied, the children themselves are shared. A nil or empty
// map produces an empty branch, used for approximators that carry no
// state of some kind.
func NewBranch(children map[string]*Tree) *Tree {
	branches := make(map[string]*Tree, len(children))
	for key, child := range children {
		if child == nil {
			panic(fmt.Sprintf("newBranch: nil subtree at key %v", key))
		}
		branches[key] = child
	}
	return &Tree{branches: branches}
}

// IsLeaf returns whether the tree is a leaf node.
func (t *Tree) IsLeaf() bool {
	return t.leaf != nil
}

// Value returns the tensor held by a leaf tree and nil for branches.
func (t *Tree) Value() *tensor.Dense {
	return t.leaf
}

// Data returns the backing data of a leaf tree. The returned slice is
// the leaf's own storage and must be treated as read-only.
func (t *Tree) Data() []float64 {
	if !t.IsLeaf() {
		panic("data: called on a branch node")
	}
	return t.leaf.Data().([]float64)
}

// Get returns the child tree at key, or nil if t is a leaf or has no
// such child.
func (t *Tree) Get(key string) *Tree {
	if t == nil || t.IsLeaf() {
		return nil
	}
	return t.branches[key]
}

// Keys returns the sorted child keys of a branch tree.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, len(t.branches))
	for key := range t.branches {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NumLeaves returns the total number of leaves in the tree.
func (t *Tree) NumLeaves() int {
	if t.IsLeaf() {
		return 1
	}
	n := 0
	for _, child := range t.branches {
		n += child.NumLeaves()
	}
	return n
}

// Walk calls fn on every leaf in depth-first order, children visited
// in sorted key order. The path argument joins keys with '/'.
func (t *Tree) Walk(fn func(path string, leaf *tensor.Dense)) {
	t.walk("", fn)
}

func (t *Tree) walk(path string, fn func(string, *tensor.Dense)) {
	if t.IsLeaf() {
		fn(path, t.leaf)
		return
	}
	for _, key := range t.Keys() {
		childPath := key
		if path != "" {
			childPath = path + "/" + key
		}
		t.branches[key].walk(childPath, fn)
	}
}

// Structure returns the structural signature of a tree: its key sets
// and leaf shapes, independent of leaf values. Two trees with equal
// signatures can be combined leaf-by-leaf.
func Structure(t *Tree) string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.structure(&b)
	return b.String()
}

func (t *Tree) structure(b *strings.Builder) {
	if t.IsLeaf() {
		b.WriteString(t.leaf.Shape().String())
		return
	}
	b.WriteByte('{')
	for i, key := range t.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte(':')
		t.branches[key].structure(b)
	}
	b.WriteByte('}')
}

// SameStructure returns whether a and b have identical structural
// signatures.
func SameStructure(a, b *Tree) bool {
	return Structure(a) == Structure(b)
}

// Map returns a new tree with the same structure as t whose leaves
// are fn applied to each of t's leaves. The slice passed to fn is
// t's own storage and must not be modified; fn must return a fresh
// slice of the same length.
func Map(t *Tree, fn func(data []float64) []float64) *Tree {
	if t.IsLeaf() {
		out := fn(t.Data())
		return NewLeaf(tensor.New(
			tensor.WithShape(t.leaf.Shape()...),
			tensor.WithBacking(out),
		))
	}
	branches := make(map[string]*Tree, len(t.branches))
	for key, child := range t.branches {
		branches[key] = Map(child, fn)
	}
	return &Tree{branches: branches}
}

// Combine returns a new tree whose leaves are fn applied to the
// corresponding leaf pairs of a and b. The trees must have identical
// structure. The slices passed to fn must not be modified; fn must
// return a fresh slice of the same length.
func Combine(a, b *Tree, fn func(av, bv []float64) []float64) (*Tree,
	error) {
	if a.IsLeaf() != b.IsLeaf() {
		return nil, structureError("combine", a, b)
	}
	if a.IsLeaf() {
		if !a.leaf.Shape().Eq(b.leaf.Shape()) {
			return nil, structureError("combine", a, b)
		}
		out := fn(a.Data(), b.Data())
		return NewLeaf(tensor.New(
			tensor.WithShape(a.leaf.Shape()...),
			tensor.WithBacking(out),
		)), nil
	}
	if len(a.branches) != len(b.branches) {
		return nil, structureError("combine", a, b)
	}
	branches := make(map[string]*Tree, len(a.branches))
	for key, childA := range a.branches {
		childB, ok := b.branches[key]
		if !ok {
			return nil, structureError("combine", a, b)
		}
		child, err := Combine(childA, childB, fn)
		if err != nil {
			return nil, err
		}
		branches[key] = child
	}
	return &Tree{branches: branches}, nil
}

func structureError(op string, a, b *Tree) error {
	return fmt.Errorf("%v: tree structure mismatch\n\twant(%v)\n\t"+
		"have(%v)", op, Structure(a), Structure(b))
}

// Add returns the leafwise sum a + b.
func Add(a, b *Tree) (*Tree, error) {
	return Combine(a, b, func(av, bv []float64) []float64 {
		out := make([]float64, len(av))
		for i := range av {
			out[i] = av[i] + bv[i]
		}
		return out
	})
}

// Scale returns the tree t with every leaf multiplied by s.
func Scale(t *Tree, s float64) *Tree {
	return Map(t, func(data []float64) []float64 {
		out := make([]float64, len(data))
		for i := range data {
			out[i] = s * data[i]
		}
		return out
	})
}

// ZerosLike returns a tree with t's structure and all-zero leaves.
func ZerosLike(t *Tree) *Tree {
	return Map(t, func(data []float64) []float64 {
		return make([]float64, len(data))
	})
}

// Copy returns a deep copy of t.
func Copy(t *Tree) *Tree {
	return Map(t, func(data []float64) []float64 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	})
}

// Polyak returns the exponential average (1 - tau)*target + tau*online
// leaf-by-leaf, the moving-average update used to track a target
// network towards its online network. tau = 1 copies online exactly.
func Polyak(target, online *Tree, tau float64) (*Tree, error) {
	return Combine(target, online, func(tv, ov []float64) []float64 {
		out := make([]float64, len(tv))
		for i := range tv {
			out[i] = (1-tau)*tv[i] + tau*ov[i]
		}
		return out
	})
}

// Equal returns whether a and b have identical structure and exactly
// equal leaf values.
func Equal(a, b *Tree) bool {
	if !SameStructure(a, b) {
		return false
	}
	equal := true
	_, err := Combine(a, b, func(av, bv []float64) []float64 {
		for i := range av {
			if av[i] != bv[i] {
				equal = false
			}
		}
		return make([]float64, len(av))
	})
	return err == nil && equal
}

// HasNonFinite returns whether any leaf of t contains a NaN or an
// infinity.
func HasNonFinite(t *Tree) bool {
	found := false
	t.Walk(func(_ string, leaf *tensor.Dense) {
		for _, v := range leaf.Data().([]float64) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				found = true
				return
			}
		}
	})
	return found
}

// String returns a readable rendering of the tree with leaf values,
// for error messages and debugging.
func (t *Tree) String() string {
	var b strings.Builder
	t.render(&b, 0)
	return b.String()
}

func (t *Tree) render(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	if t.IsLeaf() {
		fmt.Fprintf(b, "%v%v %v", indent, t.leaf.Shape(), t.Data())
		return
	}
	b.WriteString(indent)
	b.WriteString("{\n")
	for _, key := range t.Keys() {
		fmt.Fprintf(b, "%v  %v:\n", indent, key)
		t.branches[key].render(b, depth+2)
		b.WriteByte('\n')
	}
	b.WriteString(indent)
	b.WriteString("}")
}
