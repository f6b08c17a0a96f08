package td

import (
	"math"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gotd/tree"
	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// Metrics maps diagnostic names to scalar values. Every learner
// namespaces its metrics by its name, e.g. "SimpleTD/loss". A fresh
// mapping is created on every update.
type Metrics map[string]float64

// GradsDiagnostics summarizes a gradient tree into scalar metrics
// under the given key prefix: the largest and smallest gradient
// elements and the global L2 norm across all leaves.
func GradsDiagnostics(grads *tree.Tree, prefix string) Metrics {
	max := math.Inf(-1)
	min := math.Inf(1)
	sumSquares := 0.0

	grads.Walk(func(_ string, leaf *tensor.Dense) {
		data := leaf.Data().([]float64)
		max = math.Max(max, floatutils.Max(data...))
		min = math.Min(min, floatutils.Min(data...))
		for _, v := range data {
			sumSquares += v * v
		}
	})

	return Metrics{
		prefix + "max":  max,
		prefix + "min":  min,
		prefix + "norm": math.Sqrt(sumSquares),
	}
}

// residualMetrics assembles the per-update metrics shared by all
// learners: the loss, the bias and root mean square of the residual
// between online predictions and targets, the same statistics for the
// divergence between target network and online predictions, and the
// gradient diagnostics.
func residualMetrics(name string, lossValue float64, prediction, target,
	targetNetPrediction []float64, grads *tree.Tree) Metrics {
	residual := make([]float64, len(prediction))
	divergence := make([]float64, len(prediction))
	for i := range prediction {
		residual[i] = prediction[i] - target[i]
		divergence[i] = targetNetPrediction[i] - prediction[i]
	}

	metrics := Metrics{
		name + "/loss":      lossValue,
		name + "/bias":      floatutils.Mean(residual),
		name + "/rmse":      floatutils.RootMeanSquare(residual),
		name + "/bias_targ": floatutils.Mean(divergence),
		name + "/rmse_targ": floatutils.RootMeanSquare(divergence),
	}
	for key, value := range GradsDiagnostics(grads, name+"/grads_") {
		metrics[key] = value
	}
	return metrics
}
