package interpreter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// EstimateRegularization evaluates phi on every sample separately, sums each
// output over reducedAxes keeping those axes, and returns the population
// standard deviation of every output component across samples.
//
// A sample's length is its first dimension: a (L, d) tensor is a sequence of
// L positions. Samples may differ in length as long as the reduced outputs
// agree in shape. Nil or empty samples are rejected with a *ShapeError.
func EstimateRegularization(dataset []*tensor.Tensor, phi nn.Function, reducedAxes ...int) (*tensor.Tensor, error) {
	if len(dataset) < 2 {
		return nil, &DegenerateDatasetError{
			Samples:   len(dataset),
			Component: -1,
			Reason:    "at least 2 samples are needed to measure dispersion",
		}
	}

	var shape []int
	outputs := make([]*tensor.Tensor, len(dataset))
	for n, sample := range dataset {
		if sample == nil || len(sample.Shape) == 0 || sample.Size() == 0 {
			var got []int
			if sample != nil {
				got = sample.Shape
			}
			return nil, &ShapeError{Op: fmt.Sprintf("sample %d is empty", n), Step: -1, Got: got}
		}
		out, err := phi.Forward(sample)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", n, err)
		}
		for _, axis := range reducedAxes {
			if axis < 0 || axis >= len(out.Shape) {
				return nil, &ShapeError{
					Op:   fmt.Sprintf("reducing axis %d of sample %d", axis, n),
					Step: -1,
					Got:  out.Shape,
				}
			}
			if out, err = tensor.SumAxis(out, axis, true); err != nil {
				return nil, fmt.Errorf("sample %d: %w", n, err)
			}
		}
		if shape == nil {
			shape = out.Shape
		} else if !tensor.SameShape(out.Shape, shape) {
			return nil, &ShapeError{Op: fmt.Sprintf("output of sample %d", n), Step: -1, Got: out.Shape, Want: shape}
		}
		outputs[n] = out
	}

	stacked, err := tensor.Stack(outputs)
	if err != nil {
		return nil, err
	}
	result := tensor.New(shape...)
	width := result.Size()
	column := make([]float64, len(outputs))
	for k := range result.Data {
		for n := range column {
			column[n] = stacked.Data[n*width+k]
		}
		_, std := stat.PopMeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			return nil, &DegenerateDatasetError{
				Samples:   len(dataset),
				Component: k,
				Reason:    fmt.Sprintf("has dispersion %v", std),
			}
		}
		result.Data[k] = std
	}
	return result, nil
}
