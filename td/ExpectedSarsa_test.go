package td

import (
	"math"
	"testing"
)

func TestExpectedSarsaTarget(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	// A uniform policy weights q_targ(S'=2, .) = [2, 4.5] equally:
	// G = 1 + 0.5 * (0.5*2 + 0.5*4.5) = 2.625.
	pi := newStubPolicy(1, []float64{0.0, 0.0})
	learner, err := NewExpectedSarsa(online, pi, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	tdErr, err := learner.TDError(controlBatch(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := 2.625; math.Abs(tdErr[0]-want) > tolerance {
		t.Errorf("wrong TD error \n\twant(%v)\n\thave(%v)", want,
			tdErr[0])
	}
}

func TestExpectedSarsaDegeneratePolicyMatchesSarsa(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	// Extreme logits put all probability on action 0, so the
	// expectation collapses to the A'=0 Sarsa target.
	pi := newStubPolicy(1, []float64{100.0, 0.0})
	expected, err := NewExpectedSarsa(online, pi, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sarsa, err := NewSarsa(online, qTarg, nil, NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	b := controlBatch(t)
	expectedErr, err := expected.TDError(b)
	if err != nil {
		t.Fatal(err)
	}
	sarsaErr, err := sarsa.TDError(b)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(expectedErr[0]-sarsaErr[0]) > 1e-9 {
		t.Errorf("degenerate expectation differs from Sarsa"+
			"\n\twant(%v)\n\thave(%v)", sarsaErr[0], expectedErr[0])
	}
}

func TestNewExpectedSarsaRequiresPolicy(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewExpectedSarsa(online, nil, nil, nil, nil,
		nil); err == nil {
		t.Error("expected error for a missing target policy")
	}
}
