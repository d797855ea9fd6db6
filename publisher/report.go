package publisher

import (
	"fmt"
	"io"

	"chain_of_density/textstats"
)

// DensityReport accumulates metrics over a batch of final summaries.
type DensityReport struct {
	Rows     []textstats.Metrics
	Tokens   int
	Entities int
}

// Add computes and records the metrics of summary.
func (r *DensityReport) Add(summary string) textstats.Metrics {
	m := textstats.Compute(summary)
	r.Rows = append(r.Rows, m)
	r.Tokens += m.Tokens
	r.Entities += m.Entities
	return m
}

// Final is the batch entity/token ratio: total entities over total tokens.
func (r *DensityReport) Final() float64 {
	return textstats.Ratio(r.Entities, r.Tokens)
}

// WriteTo prints one line per summary and the batch ratio.
func (r *DensityReport) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, m := range r.Rows {
		k, err := fmt.Fprintf(w, "Token Count: %d, Entity Count: %d, E/T : %.4f\n", m.Tokens, m.Entities, m.Ratio)
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	k, err := fmt.Fprintf(w, "FINAL ET: %.4f\n", r.Final())
	return n + int64(k), err
}
