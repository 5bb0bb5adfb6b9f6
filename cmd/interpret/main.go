// interpret: learns per-position σ explanations for a saved or remote model
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"interp_lib/core/ckkswrapper"
	"interp_lib/interpreter"
	"interp_lib/nn"
	"interp_lib/split"
	"interp_lib/tensor"
	"interp_lib/utils"
)

var (
	configPath string
	iterations int
	top        int
	verbose    bool

	calibModel string
	calibData  string
	calibAxes  string
	calibOut   string
)

var rootCmd = &cobra.Command{
	Use:   "interpret",
	Short: "Explain model inputs by learning how much noise each position tolerates",
	Long: `Learns one σ per input position: small σ marks positions the model relies on,
σ near its bound marks positions that can be replaced by noise.

Examples:
  interpret run --config run.yaml
  interpret run --config run.yaml --iterations 500 --top 5
  interpret calibrate --model model.json --dataset calib.json --axes "0" --out reg.json`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize σ for every input in the configured inputs file",
	RunE:  runInterpret,
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Estimate the regularization tensor of a model over a dataset",
	RunE:  runCalibrate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print timing statistics")

	runCmd.Flags().StringVarP(&configPath, "config", "c", "run.yaml", "YAML run configuration")
	runCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Override the configured number of steps")
	runCmd.Flags().IntVar(&top, "top", 10, "Ranked positions to print per input (0 for all)")

	calibrateCmd.Flags().StringVar(&calibModel, "model", "", "Model weights file")
	calibrateCmd.Flags().StringVar(&calibData, "dataset", "", "Samples file")
	calibrateCmd.Flags().StringVar(&calibAxes, "axes", "", "Space separated output axes to sum over")
	calibrateCmd.Flags().StringVar(&calibOut, "out", "regularization.json", "Where to write the result")
	calibrateCmd.MarkFlagRequired("model")
	calibrateCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(runCmd, calibrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadModel builds the local model, creating a CKKS context only when a
// layer is encrypted.
func loadModel(path string, logN int, stats *utils.TimingStats) (*nn.Sequential, error) {
	start := time.Now()
	weights, err := utils.LoadWeights(path)
	if err != nil {
		return nil, err
	}
	var he *ckkswrapper.HeContext
	for _, l := range weights.Layers {
		if !l.Encrypted {
			continue
		}
		heStart := time.Now()
		if logN == 0 {
			logN = ckkswrapper.DefaultLogN
		}
		if he, err = ckkswrapper.NewHeContextWithLogN(logN); err != nil {
			return nil, err
		}
		utils.Track(&stats.HEInitTime, heStart)
		break
	}
	model, err := utils.BuildModel(weights, he)
	utils.Track(&stats.ModelInitTime, start)
	return model, err
}

func interpreterOptions(cfg utils.InterpreterConfig, logger *slog.Logger, metrics *interpreter.Metrics) ([]interpreter.Option, error) {
	opts := []interpreter.Option{interpreter.WithLogger(logger), interpreter.WithMetrics(metrics)}
	if cfg.Scale != nil {
		opts = append(opts, interpreter.WithScale(*cfg.Scale))
	}
	if cfg.Rate != nil {
		opts = append(opts, interpreter.WithRate(*cfg.Rate))
	}
	if cfg.LearningRate != nil {
		opts = append(opts, interpreter.WithLearningRate(*cfg.LearningRate))
	}
	if cfg.InitSigma != nil {
		opts = append(opts, interpreter.WithInitSigma(*cfg.InitSigma))
	}
	if cfg.Transform != "" {
		tr, ok := interpreter.TransformLookup[cfg.Transform]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", cfg.Transform)
		}
		opts = append(opts, interpreter.WithTransform(tr))
	}
	if cfg.KeepBest {
		opts = append(opts, interpreter.WithKeepBest())
	}
	if cfg.StrictNumerics {
		opts = append(opts, interpreter.WithStrictNumerics())
	}
	if cfg.Seed != nil {
		opts = append(opts, interpreter.WithSeed(*cfg.Seed))
	}
	return opts, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

func runInterpret(cmd *cobra.Command, _ []string) error {
	utils.Verbose = verbose
	stats := &utils.TimingStats{}
	start := time.Now()

	cfg, err := utils.LoadRunConfig(configPath)
	if err != nil {
		return err
	}
	if iterations > 0 {
		cfg.Iterations = iterations
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	metrics := interpreter.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	var phi nn.Function
	if cfg.Remote != "" {
		conn, err := net.Dial("tcp", cfg.Remote)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.Remote, err)
		}
		defer conn.Close()
		remote := split.NewRemoteFunction(split.NewProtocol(conn, conn))
		defer remote.Close()
		phi = remote
		logger.Info("using remote model", "addr", cfg.Remote)
	} else {
		model, err := loadModel(cfg.Model, cfg.LogN, stats)
		if err != nil {
			return err
		}
		phi = model
		logger.Info("model loaded", "layers", model.Tag(), "encrypted", model.Encrypted())
	}

	loadStart := time.Now()
	samples, err := utils.LoadSamples(cfg.Inputs)
	if err != nil {
		return err
	}
	inputs, err := utils.SampleTensors(samples)
	if err != nil {
		return err
	}
	utils.Track(&stats.DataLoadingTime, loadStart)

	var regular *tensor.Tensor
	if cfg.Regularization != "" {
		saved, err := utils.LoadSamples(cfg.Regularization)
		if err != nil {
			return err
		}
		if len(saved) != 1 {
			return fmt.Errorf("%s: expected one regularization tensor, found %d", cfg.Regularization, len(saved))
		}
		if regular, err = saved[0].Tensor(); err != nil {
			return err
		}
	} else if cfg.Calibration != "" {
		calStart := time.Now()
		calib, err := utils.LoadSamples(cfg.Calibration)
		if err != nil {
			return err
		}
		dataset, err := utils.SampleTensors(calib)
		if err != nil {
			return err
		}
		if regular, err = interpreter.EstimateRegularization(dataset, phi, cfg.ReducedAxes...); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		utils.Track(&stats.CalibrationTime, calStart)
		logger.Info("calibrated", "samples", len(dataset), "shape", regular.Shape)
	}

	opts, err := interpreterOptions(cfg.Interpreter, logger, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// words differ per input, so inputs with labels run one by one
	optStart := time.Now()
	explanations := make([]interpreter.Explanation, len(inputs))
	if hasWords(samples) {
		for i, x := range inputs {
			if err := ctx.Err(); err != nil {
				return err
			}
			own := append(append([]interpreter.Option(nil), opts...), interpreter.WithWords(samples[i].Words))
			in, err := interpreter.New(x, phi, regular, own...)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			if err := in.Optimize(cfg.Iterations); err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			explanations[i] = in.Explain()
		}
	} else if explanations, err = interpreter.ExplainAll(ctx, inputs, phi, regular, cfg.Iterations, opts...); err != nil {
		return err
	}
	utils.Track(&stats.OptimizationTime, optStart)

	renderStart := time.Now()
	out := cmd.OutOrStdout()
	for i, e := range explanations {
		fmt.Fprintln(out, renderExplanation(fmt.Sprintf("input %d", i), e, top))
	}
	utils.Track(&stats.RenderTime, renderStart)

	stats.TotalTime = time.Since(start)
	utils.PrintTimingStats(stats, len(inputs), cfg.Iterations)
	return nil
}

func hasWords(samples []utils.Sample) bool {
	for _, s := range samples {
		if len(s.Words) > 0 {
			return true
		}
	}
	return false
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	utils.Verbose = verbose
	stats := &utils.TimingStats{}
	start := time.Now()

	axes, err := utils.ParseAxes(calibAxes)
	if err != nil {
		return fmt.Errorf("invalid axes %q: %w", calibAxes, err)
	}
	model, err := loadModel(calibModel, 0, stats)
	if err != nil {
		return err
	}
	samples, err := utils.LoadSamples(calibData)
	if err != nil {
		return err
	}
	dataset, err := utils.SampleTensors(samples)
	if err != nil {
		return err
	}

	calStart := time.Now()
	regular, err := interpreter.EstimateRegularization(dataset, model, axes...)
	if err != nil {
		return err
	}
	utils.Track(&stats.CalibrationTime, calStart)

	if err := utils.SaveSamples(calibOut, []utils.Sample{utils.SampleFromTensor(regular, nil)}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "regularization %v written to %s\n", regular.Shape, calibOut)

	stats.TotalTime = time.Since(start)
	utils.PrintTimingStats(stats, 0, 0)
	return nil
}
