package td

import (
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// rowMax reduces a flat row-major matrix of action values to the
// maximum of each row.
func rowMax(values []float64, cols int) []float64 {
	rows := len(values) / cols
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = floatutils.Max(values[i*cols : (i+1)*cols]...)
	}
	return out
}

// rowArgMax reduces a flat row-major matrix to the index of each
// row's maximum, breaking ties towards the lowest index. The indices
// are returned as floats, the raw representation of discrete actions.
func rowArgMax(values []float64, cols int) []float64 {
	rows := len(values) / cols
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		_, indices := floatutils.MaxSlice(values[i*cols : (i+1)*cols])
		out[i] = float64(indices[0])
	}
	return out
}

// rowExpectation reduces flat row-major matrices of action values and
// policy logits to the expected action value of each row under the
// softmax of the logits.
func rowExpectation(values, logits []float64, cols int) []float64 {
	rows := len(values) / cols
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		probs := floatutils.Softmax(logits[i*cols : (i+1)*cols])
		row := values[i*cols : (i+1)*cols]
		for j, p := range probs {
			out[i] += p * row[j]
		}
	}
	return out
}
