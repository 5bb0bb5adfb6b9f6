package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"interp_lib/tensor"
)

// InitUniform fills t with U(-1/sqrt(fanIn), 1/sqrt(fanIn)) draws from src.
func InitUniform(t *tensor.Tensor, fanIn int, src rand.Source) {
	bound := 1.0
	if fanIn > 0 {
		bound = 1 / math.Sqrt(float64(fanIn))
	}
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	for i := range t.Data {
		t.Data[i] = dist.Rand()
	}
}
