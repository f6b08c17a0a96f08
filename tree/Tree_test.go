package tree

import (
	"math"
	"testing"

	"gorgonia.org/tensor"
)

// newTestTree returns a small two-level tree resembling the parameters
// of a one-layer network.
func newTestTree() *Tree {
	return NewBranch(map[string]*Tree{
		"l0": NewBranch(map[string]*Tree{
			"w": NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6}),
			"b": NewVector([]float64{0.5, -0.5, 0}),
		}),
		"count": NewScalar(7),
	})
}

func TestStructure(t *testing.T) {
	tr := newTestTree()
	want := "{count:(1),l0:{b:(3),w:(2, 3)}}"
	if have := Structure(tr); have != want {
		t.Errorf("wrong structure signature\n\twant(%v)\n\thave(%v)",
			want, have)
	}

	// Same structure, different values
	other := ZerosLike(tr)
	if !SameStructure(tr, other) {
		t.Error("zeros-like tree should share the source's structure")
	}

	// Different key set
	renamed := NewBranch(map[string]*Tree{
		"l0":   tr.Get("l0"),
		"step": NewScalar(7),
	})
	if SameStructure(tr, renamed) {
		t.Error("trees with different keys should not share structure")
	}

	// Different leaf shape
	reshaped := NewBranch(map[string]*Tree{
		"l0": NewBranch(map[string]*Tree{
			"w": NewMatrix(3, 2, []float64{1, 2, 3, 4, 5, 6}),
			"b": NewVector([]float64{0.5, -0.5, 0}),
		}),
		"count": NewScalar(7),
	})
	if SameStructure(tr, reshaped) {
		t.Error("trees with different shapes should not share structure")
	}
}

func TestAdd(t *testing.T) {
	a := NewBranch(map[string]*Tree{
		"w": NewVector([]float64{1, 2, 3}),
	})
	b := NewBranch(map[string]*Tree{
		"w": NewVector([]float64{10, 20, 30}),
	})

	sum, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{11, 22, 33}
	for i, v := range sum.Get("w").Data() {
		if v != want[i] {
			t.Errorf("wrong sum at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], v)
		}
	}

	// Arguments should be untouched
	if a.Get("w").Data()[0] != 1 || b.Get("w").Data()[0] != 10 {
		t.Error("add modified its arguments")
	}
}

func TestCombineStructureMismatch(t *testing.T) {
	a := NewBranch(map[string]*Tree{"w": NewVector([]float64{1, 2})})
	b := NewBranch(map[string]*Tree{"v": NewVector([]float64{1, 2})})

	if _, err := Add(a, b); err == nil {
		t.Error("expected an error when combining mismatched trees")
	}

	c := NewBranch(map[string]*Tree{"w": NewVector([]float64{1, 2, 3})})
	if _, err := Add(a, c); err == nil {
		t.Error("expected an error when combining mismatched shapes")
	}
}

func TestScale(t *testing.T) {
	tr := NewVector([]float64{1, -2, 4})
	scaled := Scale(tr, -0.5)
	want := []float64{-0.5, 1, -2}
	for i, v := range scaled.Data() {
		if v != want[i] {
			t.Errorf("wrong scaled value at index %d "+
				"\n\twant(%v)\n\thave(%v)", i, want[i], v)
		}
	}
	if tr.Data()[0] != 1 {
		t.Error("scale modified its argument")
	}
}

func TestPolyak(t *testing.T) {
	target := NewVector([]float64{0, 0, 0})
	online := NewVector([]float64{1, 2, 3})

	avg, err := Polyak(target, online, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0.2, 0.3}
	for i, v := range avg.Data() {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("wrong average at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], v)
		}
	}

	// tau = 1 should copy the online values exactly
	copied, err := Polyak(target, online, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(copied, online) {
		t.Error("polyak with tau = 1 should equal the online tree")
	}
}

func TestCopyIsDeep(t *testing.T) {
	tr := newTestTree()
	cp := Copy(tr)
	if !Equal(tr, cp) {
		t.Fatal("copy should equal its source")
	}

	// Mutating the copy's backing data must not affect the source
	cp.Get("l0").Get("w").Data()[0] = 100
	if tr.Get("l0").Get("w").Data()[0] == 100 {
		t.Error("copy shares storage with its source")
	}
}

func TestHasNonFinite(t *testing.T) {
	clean := newTestTree()
	if HasNonFinite(clean) {
		t.Error("finite tree flagged as non-finite")
	}

	dirty := NewBranch(map[string]*Tree{
		"w": NewVector([]float64{1, math.NaN(), 3}),
	})
	if !HasNonFinite(dirty) {
		t.Error("NaN leaf not detected")
	}

	inf := NewBranch(map[string]*Tree{
		"w": NewVector([]float64{1, math.Inf(-1), 3}),
	})
	if !HasNonFinite(inf) {
		t.Error("infinite leaf not detected")
	}
}

func TestWalkPaths(t *testing.T) {
	tr := newTestTree()
	var paths []string
	tr.Walk(func(path string, _ *tensor.Dense) {
		paths = append(paths, path)
	})

	want := []string{"count", "l0/b", "l0/w"}
	if len(paths) != len(want) {
		t.Fatalf("wrong number of leaves \n\twant(%v)\n\thave(%v)",
			len(want), len(paths))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("wrong path at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], paths[i])
		}
	}
}

func TestNewScalars(t *testing.T) {
	tr := NewScalars(map[string]float64{"beta": 0.01, "tau": 0.5})
	if tr.Get("beta").Data()[0] != 0.01 {
		t.Errorf("wrong scalar value \n\twant(%v)\n\thave(%v)",
			0.01, tr.Get("beta").Data()[0])
	}
	if want := "{beta:(1),tau:(1)}"; Structure(tr) != want {
		t.Errorf("wrong structure \n\twant(%v)\n\thave(%v)",
			want, Structure(tr))
	}
}

func BenchmarkAdd(b *testing.B) {
	data := make([]float64, 4096)
	for i := range data {
		data[i] = float64(i)
	}
	x := NewBranch(map[string]*Tree{
		"l0": NewBranch(map[string]*Tree{
			"w": NewMatrix(64, 64, data),
		}),
	})
	y := ZerosLike(x)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Add(x, y)
	}
}
