package interpreter

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConstruction      = errors.New("invalid interpreter construction")
	ErrShape             = errors.New("shape mismatch")
	ErrNumerical         = errors.New("numerical instability")
	ErrDegenerateDataset = errors.New("degenerate dataset")
)

// ConstructionError is returned by New before any optimization step runs.
type ConstructionError struct {
	Reason string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interpreter: %s: %v", e.Reason, e.Err)
	}
	return "interpreter: " + e.Reason
}

func (e *ConstructionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConstruction, e.Err}
	}
	return []error{ErrConstruction}
}

// ShapeError reports a tensor whose shape disagrees with the one expected.
// Step is -1 outside of Optimize.
type ShapeError struct {
	Op   string
	Step int
	Got  []int
	Want []int
}

func (e *ShapeError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("%s at step %d: got shape %v, want %v", e.Op, e.Step, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: got shape %v, want %v", e.Op, e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// NumericalError is returned by Optimize under WithStrictNumerics when a step
// produces a non-finite loss or gradient.
type NumericalError struct {
	Step int
	Loss float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("non-finite loss or gradient at step %d (loss=%v)", e.Step, e.Loss)
}

func (e *NumericalError) Unwrap() error { return ErrNumerical }

// DegenerateDatasetError is returned by EstimateRegularization when the
// dataset cannot yield a usable dispersion. Component is -1 when the
// problem is the dataset size.
type DegenerateDatasetError struct {
	Samples   int
	Component int
	Reason    string
}

func (e *DegenerateDatasetError) Error() string {
	if e.Component >= 0 {
		return fmt.Sprintf("degenerate dataset (%d samples): component %d %s", e.Samples, e.Component, e.Reason)
	}
	return fmt.Sprintf("degenerate dataset (%d samples): %s", e.Samples, e.Reason)
}

func (e *DegenerateDatasetError) Unwrap() error { return ErrDegenerateDataset }
