package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `model: model.json
inputs: inputs.json
calibration: calib.json
reduced_axes: [0]
iterations: 300
interpreter:
  rate: 0.2
  transform: square
  seed: 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}
	if cfg.Iterations != 300 || cfg.Model != "model.json" || cfg.Calibration != "calib.json" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.ReducedAxes) != 1 || cfg.ReducedAxes[0] != 0 {
		t.Errorf("ReducedAxes = %v", cfg.ReducedAxes)
	}
	if cfg.Interpreter.Rate == nil || *cfg.Interpreter.Rate != 0.2 || cfg.Interpreter.Transform != "square" {
		t.Errorf("Interpreter = %+v", cfg.Interpreter)
	}
	if cfg.Interpreter.Scale != nil || cfg.Interpreter.LearningRate != nil {
		t.Errorf("omitted fields should stay unset: %+v", cfg.Interpreter)
	}
	if cfg.Interpreter.Seed == nil || *cfg.Interpreter.Seed != 7 {
		t.Errorf("Seed = %v", cfg.Interpreter.Seed)
	}
	// defaults survive for omitted fields
	if !cfg.Interpreter.KeepBest || cfg.LogLevel != "info" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig: %v", err)
	}
}

func TestLoadRunConfigExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `model: model.json
inputs: inputs.json
interpreter:
  rate: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}
	if cfg.Interpreter.Rate == nil || *cfg.Interpreter.Rate != 0 {
		t.Errorf("Rate = %v, want an explicit 0", cfg.Interpreter.Rate)
	}
}

func TestLoadRunConfigErrors(t *testing.T) {
	if _, err := LoadRunConfig("/nonexistent/run.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("iterations: [1, 2"), 0644)
	if _, err := LoadRunConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *RunConfig {
		cfg := DefaultRunConfig()
		cfg.Model, cfg.Inputs = "m.json", "in.json"
		return cfg
	}
	if err := ValidateConfig(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	mutations := map[string]func(*RunConfig){
		"no model":      func(c *RunConfig) { c.Model = "" },
		"no inputs":     func(c *RunConfig) { c.Inputs = "" },
		"negative iter": func(c *RunConfig) { c.Iterations = -1 },
		"negative axis": func(c *RunConfig) { c.ReducedAxes = []int{-1} },
		"log n":         func(c *RunConfig) { c.LogN = 30 },
		"log level":     func(c *RunConfig) { c.LogLevel = "loud" },
	}
	for name, mutate := range mutations {
		cfg := valid()
		mutate(cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	remote := valid()
	remote.Model, remote.Remote = "", "localhost:9000"
	if err := ValidateConfig(remote); err != nil {
		t.Errorf("remote config rejected: %v", err)
	}
}

func TestParseAxes(t *testing.T) {
	axes, err := ParseAxes("0 2")
	if err != nil || len(axes) != 2 || axes[1] != 2 {
		t.Fatalf("ParseAxes = %v, %v", axes, err)
	}
	if _, err := ParseAxes("0 x"); err == nil {
		t.Error("expected error")
	}
}
