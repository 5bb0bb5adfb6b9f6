// interp-infer: evaluates a saved model on a samples file, optionally
// checking encrypted layers against their plaintext weights
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"interp_lib/core/ckkswrapper"
	"interp_lib/nn"
	"interp_lib/nn/layers"
	"interp_lib/tensor"
	"interp_lib/utils"
)

var (
	weightsFile = flag.String("weights", "", "Weights JSON file")
	inputFile   = flag.String("input", "", "Samples JSON file")
	logN        = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2")
	compare     = flag.Bool("compare", false, "Report the divergence of encrypted layers from plaintext")
	verbose     = flag.Bool("verbose", true, "Verbose output")
	topK        = flag.Int("topk", 3, "Largest outputs to show per sample")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *weightsFile == "" || *inputFile == "" {
		fmt.Fprintln(os.Stderr, "both -weights and -input are required")
		os.Exit(2)
	}

	weights, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading weights: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d layers\n", len(weights.Layers))

	samples, err := utils.LoadSamples(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading samples: %v\n", err)
		os.Exit(1)
	}
	inputs, err := utils.SampleTensors(samples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	heCtx, err := ckkswrapper.NewHeContextWithLogN(*logN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	model, err := utils.BuildModel(weights, heCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var plain *nn.Sequential
	if *compare && model.Encrypted() {
		plain = plaintextCopy(model)
	}

	start := time.Now()
	for i, x := range inputs {
		out, err := model.Forward(x)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sample %d: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("\nSample %d %v -> %v\n", i, x.Shape, out.Shape)
		showTop(out, *topK)

		if plain != nil {
			ref, err := plain.Forward(x)
			if err != nil {
				fmt.Fprintf(os.Stderr, "sample %d: %v\n", i, err)
				os.Exit(1)
			}
			fmt.Printf("  max |HE - plain| = %.3e\n", maxAbsDiff(out, ref))
		}
	}
	fmt.Printf("\nTime: %.4fs\n", time.Since(start).Seconds())
	if *verbose {
		s := heCtx.Stats()
		fmt.Printf("HE ops: %d encryptions, %d multiplications, %d rescales, %d decryptions\n",
			s.Encryptions, s.Muls, s.Rescales, s.Decryptions)
	}
}

// plaintextCopy swaps every encrypted layer for its plaintext weights.
func plaintextCopy(model *nn.Sequential) *nn.Sequential {
	mods := make([]nn.Layer, len(model.Layers))
	for i, l := range model.Layers {
		if enc, ok := l.(*layers.EncryptedLinear); ok {
			mods[i] = enc.Plain
			continue
		}
		mods[i] = l
	}
	return nn.NewSequential(mods...)
}

func maxAbsDiff(a, b *tensor.Tensor) float64 {
	m := 0.0
	for i := range a.Data {
		m = math.Max(m, math.Abs(a.Data[i]-b.Data[i]))
	}
	return m
}

func showTop(out *tensor.Tensor, k int) {
	indices := topKIndices(out.Data, k)
	for i, idx := range indices {
		fmt.Printf("  %d. output %d: %.4f\n", i+1, idx, out.Data[idx])
	}
}

func topKIndices(vals []float64, k int) []int {
	if k > len(vals) {
		k = len(vals)
	}
	indices := make([]int, k)
	used := make(map[int]bool)
	for i := 0; i < k; i++ {
		maxIdx, maxVal := -1, math.Inf(-1)
		for j, v := range vals {
			if !used[j] && v > maxVal {
				maxVal, maxIdx = v, j
			}
		}
		indices[i] = maxIdx
		used[maxIdx] = true
	}
	return indices
}
