package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"interp_lib/core/ckkswrapper"
	"interp_lib/nn"
	"interp_lib/nn/layers"
	"interp_lib/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("test_weight", ten)

	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	for i, v := range wd.Data {
		expected := float64(i) * 0.5
		if v != expected {
			t.Errorf("Data[%d] = %f, want %f", i, v, expected)
		}
	}
	ten.Data[0] = 99
	if wd.Data[0] == 99 {
		t.Error("weight data shares memory with the tensor")
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten, err := WeightDataToTensor(wd)
	if err != nil {
		t.Fatalf("WeightDataToTensor failed: %v", err)
	}
	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}

	wd.Data = wd.Data[:5]
	if _, err := WeightDataToTensor(wd); err == nil {
		t.Error("expected error for truncated data")
	}
}

func testModel(t *testing.T) *nn.Sequential {
	t.Helper()
	src := rand.NewSource(4)
	act, err := layers.NewActivation("tanh")
	if err != nil {
		t.Fatal(err)
	}
	inner, err := layers.NewActivation("sigmoid")
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewSequential(
		layers.NewRNNRandom(6, 5, src),
		act,
		layers.NewResidualBlock(layers.NewLinearRandom(5, 5, src), inner),
		layers.NewLinearRandom(5, 3, src),
		layers.NewSumPool(0),
		layers.Softmax{},
	)
}

func TestSaveLoadBuildModel(t *testing.T) {
	tmpDir := t.TempDir()
	weightsFile := filepath.Join(tmpDir, "model.json")

	model := testModel(t)
	weights, err := ExportModel(model)
	if err != nil {
		t.Fatalf("ExportModel failed: %v", err)
	}
	if err := SaveWeights(weightsFile, weights); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if loaded.Version != "1.0" {
		t.Errorf("Version = %s, want 1.0", loaded.Version)
	}
	if len(loaded.Layers) != 6 {
		t.Fatalf("Layers count = %d, want 6", len(loaded.Layers))
	}
	if res := loaded.Layers[2]; res.Type != LayerResidual || len(res.Layers) != 2 {
		t.Errorf("residual block = %+v", res)
	}
	if loaded.Layers[1].Activation != "tanh" {
		t.Errorf("activation = %q, want tanh", loaded.Layers[1].Activation)
	}

	rebuilt, err := BuildModel(loaded, nil)
	if err != nil {
		t.Fatalf("BuildModel failed: %v", err)
	}
	if rebuilt.Tag() != model.Tag() {
		t.Errorf("Tag = %s, want %s", rebuilt.Tag(), model.Tag())
	}

	x := tensor.Full(0.3, 4, 6)
	want, _ := model.Forward(x)
	got, err := rebuilt.Forward(x)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Errorf("output[%d] = %f, want %f", i, got.Data[i], want.Data[i])
		}
	}
}

func TestBuildModelErrors(t *testing.T) {
	cases := map[string]*ModelWeights{
		"empty":          {},
		"unknown type":   {Layers: []LayerWeight{{Type: "conv2d"}}},
		"no weight":      {Layers: []LayerWeight{{Type: LayerLinear}}},
		"bad bias":       {Layers: []LayerWeight{{Type: LayerLinear, Weight: &WeightData{Shape: []int{2, 2}, Data: make([]float64, 4)}, Bias: &WeightData{Shape: []int{3}, Data: make([]float64, 3)}}}},
		"no recurrent":   {Layers: []LayerWeight{{Type: LayerRNN, Weight: &WeightData{Shape: []int{2, 2}, Data: make([]float64, 4)}}}},
		"no coef":        {Layers: []LayerWeight{{Type: LayerPositionWeights}}},
		"bad activator":  {Layers: []LayerWeight{{Type: LayerActivation, Activation: "gelu"}}},
		"empty residual": {Layers: []LayerWeight{{Type: LayerResidual}}},
		"encrypted":      {Layers: []LayerWeight{{Type: LayerLinear, Encrypted: true, Weight: &WeightData{Shape: []int{2, 2}, Data: make([]float64, 4)}}}},
	}
	for name, mw := range cases {
		if _, err := BuildModel(mw, nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBuildEncryptedLinear(t *testing.T) {
	he, err := ckkswrapper.NewHeContextWithLogN(12)
	if err != nil {
		t.Fatal(err)
	}
	mw := &ModelWeights{Layers: []LayerWeight{{
		Type:      LayerLinear,
		Encrypted: true,
		Weight:    &WeightData{Shape: []int{1, 2}, Data: []float64{1, -1}},
	}}}
	seq, err := BuildModel(mw, he)
	if err != nil {
		t.Fatal(err)
	}
	if !seq.Encrypted() {
		t.Fatal("expected an encrypted model")
	}
	exported, err := ExportModel(seq)
	if err != nil {
		t.Fatal(err)
	}
	if !exported.Layers[0].Encrypted {
		t.Error("export lost the encrypted flag")
	}
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	err := os.WriteFile(badFile, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	_, err = LoadWeights(badFile)
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "inputs.json")
	x := tensor.Full(2, 3, 2)
	samples := []Sample{SampleFromTensor(x, []string{"a", "b", "c"}), SampleFromTensor(tensor.New(5, 2), nil)}
	if err := SaveSamples(file, samples); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSamples(file)
	if err != nil {
		t.Fatal(err)
	}
	ts, err := SampleTensors(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 || ts[1].Shape[0] != 5 || ts[0].Data[5] != 2 {
		t.Fatalf("unexpected tensors %v", ts)
	}
	if strings.Join(loaded[0].Words, "") != "abc" {
		t.Errorf("words = %v", loaded[0].Words)
	}

	bad := []Sample{{Words: []string{"only"}, Shape: []int{2, 1}, Data: []float64{1, 2}}}
	if _, err := SampleTensors(bad); err == nil {
		t.Error("expected error for word count mismatch")
	}
}
