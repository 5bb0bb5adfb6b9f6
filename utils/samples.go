package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"interp_lib/tensor"
)

// Sample is one model input: a [positions, features...] tensor with an
// optional label per position.
type Sample struct {
	Words []string  `json:"words,omitempty"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Tensor validates the sample and returns it as a tensor.
func (s *Sample) Tensor() (*tensor.Tensor, error) {
	t, err := tensor.FromData(s.Data, s.Shape...)
	if err != nil {
		return nil, err
	}
	if len(s.Words) > 0 && (len(s.Shape) == 0 || len(s.Words) != s.Shape[0]) {
		return nil, fmt.Errorf("%d words for shape %v", len(s.Words), s.Shape)
	}
	return t, nil
}

// SampleFromTensor copies t into a Sample.
func SampleFromTensor(t *tensor.Tensor, words []string) Sample {
	return Sample{
		Words: append([]string(nil), words...),
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// LoadSamples reads a JSON array of samples.
func LoadSamples(filepath string) ([]Sample, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal samples: %w", err)
	}
	return samples, nil
}

// SaveSamples writes samples as a JSON array.
func SaveSamples(filepath string, samples []Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// SampleTensors converts every sample, reporting the first invalid one.
func SampleTensors(samples []Sample) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(samples))
	for i := range samples {
		t, err := samples[i].Tensor()
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
