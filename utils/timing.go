package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for one interpretation run
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	HEInitTime       time.Duration
	ModelInitTime    time.Duration
	CalibrationTime  time.Duration
	OptimizationTime time.Duration
	RenderTime       time.Duration
}

// Track adds the time elapsed since start to *d.
func Track(d *time.Duration, start time.Time) {
	*d += time.Since(start)
}

func share(part, total time.Duration) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// PrintTimingStats prints detailed timing statistics for inputs explained
// with steps optimization steps each.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, inputs, steps int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Inputs explained: %d\n", inputs)
	fmt.Fprintf(Output, "Steps per input: %d\n", steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, share(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  HE initialization: %v (%.1f%%)\n", stats.HEInitTime, share(stats.HEInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, share(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Calibration: %v (%.1f%%)\n", stats.CalibrationTime, share(stats.CalibrationTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Optimization: %v (%.1f%%)\n", stats.OptimizationTime, share(stats.OptimizationTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Rendering: %v (%.1f%%)\n", stats.RenderTime, share(stats.RenderTime, stats.TotalTime))
	if inputs > 0 && steps > 0 {
		fmt.Fprintln(Output, "\nPerformance metrics:")
		perStep := stats.OptimizationTime / time.Duration(inputs*steps)
		fmt.Fprintf(Output, "  Average step time: %v (%.1fµs)\n", perStep, DurationUS(perStep))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
