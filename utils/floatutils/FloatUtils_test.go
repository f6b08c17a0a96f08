package floatutils

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	if v := Clip(5.0, -1.0, 1.0); v != 1.0 {
		t.Errorf("wrong clipped value \n\twant(%v)\n\thave(%v)", 1.0, v)
	}
	if v := Clip(-5.0, -1.0, 1.0); v != -1.0 {
		t.Errorf("wrong clipped value \n\twant(%v)\n\thave(%v)", -1.0, v)
	}
	if v := Clip(0.5, -1.0, 1.0); v != 0.5 {
		t.Errorf("wrong clipped value \n\twant(%v)\n\thave(%v)", 0.5, v)
	}
}

func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{1, 3, 2, 3})
	if max != 3 {
		t.Errorf("wrong max \n\twant(%v)\n\thave(%v)", 3, max)
	}
	if len(indices) != 2 || indices[0] != 1 || indices[1] != 3 {
		t.Errorf("wrong indices \n\twant(%v)\n\thave(%v)",
			[]int{1, 3}, indices)
	}
}

func TestMeanAndRootMeanSquare(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if m := Mean(values); m != 2.5 {
		t.Errorf("wrong mean \n\twant(%v)\n\thave(%v)", 2.5, m)
	}

	want := math.Sqrt(7.5)
	if rms := RootMeanSquare(values); math.Abs(rms-want) > 1e-12 {
		t.Errorf("wrong rms \n\twant(%v)\n\thave(%v)", want, rms)
	}
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{0, 0, 0})
	for _, p := range probs {
		if math.Abs(p-1.0/3.0) > 1e-12 {
			t.Errorf("wrong uniform probability \n\twant(%v)\n\thave(%v)",
				1.0/3.0, p)
		}
	}

	// Softmax should be invariant to shifting the logits
	a := Softmax([]float64{1, 2, 3})
	b := Softmax([]float64{101, 102, 103})
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Errorf("softmax not shift invariant at index %d", i)
		}
	}

	sum := 0.0
	for _, p := range a {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("softmax probabilities sum to %v, not 1", sum)
	}
}

func TestOneHot(t *testing.T) {
	encoding := OneHot(2, 4)
	want := []float64{0, 0, 1, 0}
	for i := range want {
		if encoding[i] != want[i] {
			t.Errorf("wrong encoding at index %d \n\twant(%v)\n\thave(%v)",
				i, want[i], encoding[i])
		}
	}
}
