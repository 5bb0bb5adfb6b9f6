package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// InterpreterConfig mirrors the interpreter options. Omitted (nil) fields keep
// the interpreter defaults; an explicit zero is passed through.
type InterpreterConfig struct {
	Scale          *float64 `yaml:"scale"`
	Rate           *float64 `yaml:"rate"`
	LearningRate   *float64 `yaml:"learning_rate"`
	InitSigma      *float64 `yaml:"init_sigma"`
	Transform      string   `yaml:"transform"`
	KeepBest       bool     `yaml:"keep_best"`
	StrictNumerics bool     `yaml:"strict_numerics"`
	Seed           *uint64  `yaml:"seed"`
}

// RunConfig holds one interpretation run
type RunConfig struct {
	// Model is a weights file built with BuildModel. Ignored when Remote is set.
	Model string `yaml:"model"`
	// Remote is the address of a split server holding the model.
	Remote string `yaml:"remote"`
	// Inputs is a samples file; every sample is explained.
	Inputs string `yaml:"inputs"`
	// Regularization is a tensor saved by "interpret calibrate". It takes
	// precedence over Calibration.
	Regularization string `yaml:"regularization"`
	// Calibration is an optional samples file for EstimateRegularization.
	Calibration string            `yaml:"calibration"`
	ReducedAxes []int             `yaml:"reduced_axes"`
	Iterations  int               `yaml:"iterations"`
	LogN        int               `yaml:"log_n"`
	MetricsAddr string            `yaml:"metrics_addr"`
	LogLevel    string            `yaml:"log_level"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
}

// DefaultRunConfig returns the values used for fields a config file omits.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Iterations: 5000,
		LogLevel:   "info",
		Interpreter: InterpreterConfig{
			Transform: "identity",
			KeepBest:  true,
		},
	}
}

// LoadRunConfig reads a YAML run configuration over the defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseAxes parses a space separated list of axes such as "0 1"
func ParseAxes(axesStr string) ([]int, error) {
	parts := strings.Fields(axesStr)
	axes := make([]int, len(parts))
	for i, s := range parts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		axes[i] = n
	}
	return axes, nil
}

// ValidateConfig validates a run configuration
func ValidateConfig(config *RunConfig) error {
	if config.Model == "" && config.Remote == "" {
		return fmt.Errorf("either a model file or a remote address is required")
	}

	if config.Inputs == "" {
		return fmt.Errorf("an inputs file is required")
	}

	if config.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative")
	}

	for _, a := range config.ReducedAxes {
		if a < 0 {
			return fmt.Errorf("reduced axis %d must not be negative", a)
		}
	}

	if config.LogN != 0 && (config.LogN < 10 || config.LogN > 16) {
		return fmt.Errorf("log_n must lie in [10, 16]")
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	return nil
}
