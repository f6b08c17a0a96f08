package transition

import "testing"

func TestNewBatch(t *testing.T) {
	b, err := NewBatch(
		[]float64{1, 2, 3, 4, 5, 6}, // 3 states of 2 features
		[]float64{0, 1, 0},
		[]float64{1, -1, 0.5},
		[]float64{1, 1, 0},
		[]float64{2, 3, 4, 5, 6, 7},
		nil,
		3,
	)
	if err != nil {
		t.Fatal(err)
	}

	if b.BatchSize() != 3 {
		t.Errorf("wrong batch size \n\twant(%v)\n\thave(%v)", 3,
			b.BatchSize())
	}
	if b.Features() != 2 {
		t.Errorf("wrong feature count \n\twant(%v)\n\thave(%v)", 2,
			b.Features())
	}
	if b.ActionDims() != 1 {
		t.Errorf("wrong action dims \n\twant(%v)\n\thave(%v)", 1,
			b.ActionDims())
	}
	if b.HasNextAction() {
		t.Error("batch without next actions reports having them")
	}

	state := b.StateAt(1)
	if state[0] != 3 || state[1] != 4 {
		t.Errorf("wrong state row \n\twant(%v)\n\thave(%v)",
			[]float64{3, 4}, state)
	}
}

func TestNewBatchValidation(t *testing.T) {
	// 5 state values cannot be split into 2 rows
	_, err := NewBatch(
		[]float64{1, 2, 3, 4, 5},
		[]float64{0, 1},
		[]float64{1, 1},
		[]float64{1, 1},
		[]float64{1, 2, 3, 4, 5},
		nil,
		2,
	)
	if err == nil {
		t.Error("expected an error for indivisible state values")
	}

	// Mismatched next state size
	_, err = NewBatch(
		[]float64{1, 2},
		[]float64{0, 1},
		[]float64{1, 1},
		[]float64{1, 1},
		[]float64{1, 2, 3},
		nil,
		2,
	)
	if err == nil {
		t.Error("expected an error for mismatched next state size")
	}

	// Wrong reward count
	_, err = NewBatch(
		[]float64{1, 2},
		[]float64{0, 1},
		[]float64{1},
		[]float64{1, 1},
		[]float64{2, 3},
		nil,
		2,
	)
	if err == nil {
		t.Error("expected an error for wrong reward count")
	}
}

func TestFromTransitions(t *testing.T) {
	transitions := []Transition{
		{
			State:      []float64{1, 2},
			Action:     []float64{0},
			Reward:     1,
			Discount:   1,
			NextState:  []float64{3, 4},
			NextAction: []float64{1},
		},
		{
			State:      []float64{5, 6},
			Action:     []float64{1},
			Reward:     -1,
			Discount:   0,
			NextState:  []float64{7, 8},
			NextAction: []float64{0},
		},
	}

	b, err := FromTransitions(transitions)
	if err != nil {
		t.Fatal(err)
	}

	if !b.HasNextAction() {
		t.Error("next actions were dropped")
	}
	if b.R[1] != -1 || b.Discount[1] != 0 {
		t.Error("wrong reward or discount packing")
	}

	row := b.Row(1)
	if row.State[0] != 5 || row.NextAction[0] != 0 {
		t.Error("wrong row unpacking")
	}

	// Inconsistent sizes should fail
	transitions[1].State = []float64{5}
	if _, err := FromTransitions(transitions); err == nil {
		t.Error("expected an error for inconsistent state sizes")
	}
}
