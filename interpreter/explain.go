package interpreter

import (
	"fmt"
	"sort"
	"strings"
)

// Attribution is the learned σ of one position.
type Attribution struct {
	Position int
	Word     string
	Sigma    float64
}

// Explanation pairs the current σ with the position labels, if any.
type Explanation struct {
	Words []string
	Sigma []float64
	// Scale is the upper bound of σ.
	Scale float64
}

// Explain snapshots the current σ.
func (in *Interpreter) Explain() Explanation {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Explanation{
		Words: append([]string(nil), in.cfg.Words...),
		Sigma: in.sigma(),
		Scale: in.cfg.Scale,
	}
}

// Attributions lists positions in input order.
func (e Explanation) Attributions() []Attribution {
	out := make([]Attribution, len(e.Sigma))
	for i, s := range e.Sigma {
		out[i] = Attribution{Position: i, Sigma: s}
		if i < len(e.Words) {
			out[i].Word = e.Words[i]
		}
	}
	return out
}

// Ranked orders positions by ascending σ, most informative first. Ties keep
// input order.
func (e Explanation) Ranked() []Attribution {
	out := e.Attributions()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sigma < out[j].Sigma })
	return out
}

func (e Explanation) String() string {
	var b strings.Builder
	for _, a := range e.Attributions() {
		label := a.Word
		if label == "" {
			label = fmt.Sprintf("#%d", a.Position)
		}
		fmt.Fprintf(&b, "%-16s %.4f\n", label, a.Sigma)
	}
	return b.String()
}
