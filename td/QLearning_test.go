package td

import (
	"math"
	"testing"
)

func TestQLearningTarget(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	learner, err := NewQLearning(online, nil, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// q_targ(S'=2, .) = [2, 4.5], so the greedy bootstrap is
	// G = 1 + 0.5 * 4.5 = 3.25 against an online prediction of zero.
	tdErr, err := learner.TDError(controlBatch(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := 3.25; math.Abs(tdErr[0]-want) > tolerance {
		t.Errorf("wrong TD error \n\twant(%v)\n\thave(%v)", want,
			tdErr[0])
	}
}

func TestQLearningTargetPolicyOverridesGreedy(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	// The policy's mode is action 0 even though action 1 has the
	// higher value.
	pi := newStubPolicy(1, []float64{5.0, 0.0})
	learner, err := NewQLearning(online, pi, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	tdErr, err := learner.TDError(controlBatch(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := 2.0; math.Abs(tdErr[0]-want) > tolerance {
		t.Errorf("wrong TD error \n\twant(%v)\n\thave(%v)", want,
			tdErr[0])
	}
}

func TestNewQLearningRejectsMismatchedPolicy(t *testing.T) {
	online, err := newZeroQ()
	if err != nil {
		t.Fatal(err)
	}

	pi := newStubPolicy(1, []float64{0.0, 0.0, 0.0})
	if _, err := NewQLearning(online, pi, nil, nil, nil, nil); err ==
		nil {
		t.Error("expected error for a policy over three actions")
	}
}
