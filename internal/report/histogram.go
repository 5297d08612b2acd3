// Package report turns written benchmark data into distributions and
// summaries for humans.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Bin is one equal-width histogram bucket; High is exclusive except for the
// last bin.
type Bin struct {
	Low     float64
	High    float64
	Count   int
	Percent float64
}

type Histogram struct {
	Column string
	Bins   []Bin
	Total  int
	Min    float64
	Max    float64
}

// LoadColumn reads the numeric column of a destination CSV. With iteration
// > 0 only rows of that iteration are kept.
func LoadColumn(r io.Reader, column string, iteration int) ([]float64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	col, iterCol := -1, -1
	for i, name := range header {
		switch name {
		case column:
			col = i
		case "Iteration":
			iterCol = i
		}
	}
	if col < 0 {
		return nil, errors.Errorf("no column %q, have %s", column, strings.Join(header, ", "))
	}
	if iteration > 0 && iterCol < 0 {
		return nil, errors.New("no Iteration column to filter on")
	}

	var values []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if iteration > 0 {
			it, err := strconv.Atoi(rec[iterCol])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d iteration", line)
			}
			if it != iteration {
				continue
			}
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d %s", line, column)
		}
		values = append(values, v)
	}
	return values, nil
}

// NewHistogram bins values into n equal-width bins between their min and
// max.
func NewHistogram(column string, values []float64, n int) (Histogram, error) {
	if n < 1 {
		return Histogram{}, errors.Errorf("bin count must be positive, got %d", n)
	}
	if len(values) == 0 {
		return Histogram{}, errors.New("no values to bin")
	}

	h := Histogram{Column: column, Total: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		h.Min = math.Min(h.Min, v)
		h.Max = math.Max(h.Max, v)
	}

	width := (h.Max - h.Min) / float64(n)
	if width == 0 {
		width = 1
		n = 1
	}
	h.Bins = make([]Bin, n)
	for i := range h.Bins {
		h.Bins[i].Low = h.Min + float64(i)*width
		h.Bins[i].High = h.Min + float64(i+1)*width
	}
	for _, v := range values {
		i := int((v - h.Min) / width)
		if i >= n {
			i = n - 1
		}
		h.Bins[i].Count++
	}
	for i := range h.Bins {
		h.Bins[i].Percent = 100 * float64(h.Bins[i].Count) / float64(h.Total)
	}
	return h, nil
}

// Render draws the histogram as horizontal bars scaled to width runes.
func (h Histogram) Render(w io.Writer, width int) error {
	if width < 1 {
		width = 40
	}
	maxPct := 0.0
	for _, b := range h.Bins {
		maxPct = math.Max(maxPct, b.Percent)
	}

	if _, err := fmt.Fprintf(w, "%s  (n = %s)\n", h.Column, humanize.Comma(int64(h.Total))); err != nil {
		return err
	}
	for _, b := range h.Bins {
		bar := 0
		if maxPct > 0 {
			bar = int(math.Round(b.Percent / maxPct * float64(width)))
		}
		label := fmt.Sprintf("%s - %s", formatBound(b.Low), formatBound(b.High))
		if _, err := fmt.Fprintf(w, "%-24s %-*s %5.1f%%\n", label, width, strings.Repeat("█", bar), b.Percent); err != nil {
			return err
		}
	}
	return nil
}

func formatBound(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 3)
}
