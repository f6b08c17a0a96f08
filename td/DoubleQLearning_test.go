package td

import (
	"math"
	"testing"
)

func TestDoubleQLearningTarget(t *testing.T) {
	// The online network prefers action 1 at S'=2, the target network
	// evaluates it.
	online := newHandQ(t, []float64{-1.0, 1.0}, []float64{0.0, 0.0})
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	learner, err := NewDoubleQLearning(online, nil, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// G = 1 + 0.5 * q_targ(2, 1) = 1 + 0.5 * 4.5 = 3.25 and the
	// online prediction is q(1, 0) = -1.
	tdErr, err := learner.TDError(controlBatch(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := 4.25; math.Abs(tdErr[0]-want) > tolerance {
		t.Errorf("wrong TD error \n\twant(%v)\n\thave(%v)", want,
			tdErr[0])
	}
}

func TestDoubleQLearningTargetPolicySelects(t *testing.T) {
	online := newHandQ(t, []float64{-1.0, 1.0}, []float64{0.0, 0.0})
	qTarg := newHandQ(t, []float64{1.0, 2.0}, []float64{0.0, 0.5})

	// The policy's mode is action 0, overriding the online argmax.
	pi := newStubPolicy(1, []float64{5.0, 0.0})
	learner, err := NewDoubleQLearning(online, pi, qTarg, nil,
		NewSquaredError(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// G = 1 + 0.5 * q_targ(2, 0) = 2 and the online prediction is
	// q(1, 0) = -1.
	tdErr, err := learner.TDError(controlBatch(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := 3.0; math.Abs(tdErr[0]-want) > tolerance {
		t.Errorf("wrong TD error \n\twant(%v)\n\thave(%v)", want,
			tdErr[0])
	}
}
