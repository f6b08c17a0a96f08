package td

import (
	"math"
	"testing"
)

const tolerance float64 = 1e-12

func TestSquaredErrorValue(t *testing.T) {
	loss := NewSquaredError()

	target := []float64{1.0, 2.0, 3.0, 4.0}
	prediction := []float64{0.0, 0.0, 0.0, 0.0}

	want := 7.5
	if have := loss.Value(target, prediction); math.Abs(have-want) >
		tolerance {
		t.Errorf("wrong loss \n\twant(%v)\n\thave(%v)", want, have)
	}
}

func TestSquaredErrorGrad(t *testing.T) {
	loss := NewSquaredError()

	target := []float64{1.0, 2.0, 3.0, 4.0}
	prediction := []float64{0.0, 0.0, 0.0, 0.0}

	// d/dp mean((t - p)^2) = 2(p - t) / n
	want := []float64{-0.5, -1.0, -1.5, -2.0}
	have := loss.Grad(target, prediction)
	for i := range want {
		if math.Abs(have[i]-want[i]) > tolerance {
			t.Errorf("wrong loss gradient at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, want[i], have[i])
		}
	}
}

func TestSquaredErrorResiduals(t *testing.T) {
	loss := NewSquaredError()

	target := []float64{1.0, 2.0, 3.0, 4.0}
	prediction := []float64{0.5, 0.0, 4.0, 4.0}

	want := []float64{0.5, 2.0, -1.0, 0.0}
	have := loss.Residuals(target, prediction)
	for i := range want {
		if math.Abs(have[i]-want[i]) > tolerance {
			t.Errorf("wrong residual at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, want[i], have[i])
		}
	}
}

func TestHuberValue(t *testing.T) {
	loss := NewHuber(1.0)

	// The first residual lies inside the quadratic region, the second
	// in the linear region.
	target := []float64{1.0, 2.0}
	prediction := []float64{0.0, 0.0}

	want := (0.5 + 1.5) / 2.0
	if have := loss.Value(target, prediction); math.Abs(have-want) >
		tolerance {
		t.Errorf("wrong loss \n\twant(%v)\n\thave(%v)", want, have)
	}
}

func TestHuberGrad(t *testing.T) {
	loss := NewHuber(1.0)

	target := []float64{1.0, 2.0}
	prediction := []float64{0.0, 0.0}

	want := []float64{-0.5, -0.5}
	have := loss.Grad(target, prediction)
	for i := range want {
		if math.Abs(have[i]-want[i]) > tolerance {
			t.Errorf("wrong loss gradient at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, want[i], have[i])
		}
	}
}

func TestHuberResidualsClip(t *testing.T) {
	loss := NewHuber(1.0)

	target := []float64{1.0, 2.0, -3.0}
	prediction := []float64{0.0, 0.0, 0.0}

	want := []float64{1.0, 1.0, -1.0}
	have := loss.Residuals(target, prediction)
	for i := range want {
		if math.Abs(have[i]-want[i]) > tolerance {
			t.Errorf("wrong residual at index %v \n\twant(%v)"+
				"\n\thave(%v)", i, want[i], have[i])
		}
	}
}

func TestHuberMatchesSquaredErrorInside(t *testing.T) {
	huber := NewHuber(100.0)
	squared := NewSquaredError()

	target := []float64{1.0, -2.0, 3.0}
	prediction := []float64{0.5, 0.0, 2.0}

	// With a large threshold every residual is quadratic, up to the
	// factor of one half in the Huber loss.
	want := squared.Value(target, prediction) / 2.0
	if have := huber.Value(target, prediction); math.Abs(have-want) >
		tolerance {
		t.Errorf("wrong loss \n\twant(%v)\n\thave(%v)", want, have)
	}
}

func TestNewHuberPanicsOnInvalidDelta(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a non-positive threshold")
		}
	}()
	NewHuber(0.0)
}
