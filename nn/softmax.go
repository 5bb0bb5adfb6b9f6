package nn

import (
	"math"

	"interp_lib/tensor"
)

// Softmax normalizes each row along the last axis of logits.
func Softmax(logits *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(logits.Shape...)
	width := lastDim(logits)
	for start := 0; start < len(logits.Data); start += width {
		row := logits.Data[start : start+width]
		maxLogit := row[0]
		for _, v := range row {
			if v > maxLogit {
				maxLogit = v
			}
		}
		expSum := 0.0
		for i, v := range row {
			e := math.Exp(v - maxLogit)
			out.Data[start+i] = e
			expSum += e
		}
		for i := range row {
			out.Data[start+i] /= expSum
		}
	}
	return out
}

// SoftmaxBackward maps dL/dp to dL/dz for p = Softmax(z), row by row:
// dz_i = p_i * (g_i - Σ_j g_j p_j).
func SoftmaxBackward(probs, gradOut *tensor.Tensor) *tensor.Tensor {
	gradIn := tensor.New(probs.Shape...)
	width := lastDim(probs)
	for start := 0; start < len(probs.Data); start += width {
		dot := 0.0
		for i := 0; i < width; i++ {
			dot += gradOut.Data[start+i] * probs.Data[start+i]
		}
		for i := 0; i < width; i++ {
			gradIn.Data[start+i] = probs.Data[start+i] * (gradOut.Data[start+i] - dot)
		}
	}
	return gradIn
}

func lastDim(t *tensor.Tensor) int {
	if len(t.Shape) == 0 {
		return 1
	}
	return t.Shape[len(t.Shape)-1]
}
