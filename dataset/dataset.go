// Package dataset reads articles from a CSV file with one article per row.
// The first column is the article text; an optional second column holds a
// reference summary.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chain_of_density/generator"
)

// Window selects rows [Offset, Offset+Limit). Limit 0 means no upper bound.
type Window struct {
	Offset int
	Limit  int
}

// ReadFile opens path and returns the articles inside w.
func ReadFile(ctx context.Context, path string, w Window) ([]generator.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, f, w)
}

// Read returns the articles of r inside w. Rows with an empty first column
// are skipped but still count toward the offset.
func Read(ctx context.Context, r io.Reader, w Window) ([]generator.Article, error) {
	if w.Offset < 0 || w.Limit < 0 {
		return nil, fmt.Errorf("invalid window %+v", w)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var out []generator.Article
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.Limit > 0 && row >= w.Offset+w.Limit {
			break
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", row, err)
		}
		if row < w.Offset || len(rec) == 0 {
			continue
		}
		text := strings.TrimSpace(rec[0])
		if text == "" {
			continue
		}
		a := generator.NewArticle(text)
		if len(rec) > 1 {
			a.Reference = strings.TrimSpace(rec[1])
		}
		out = append(out, a)
	}
	return out, nil
}
