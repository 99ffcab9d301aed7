// Package report renders simulation output for terminals and spreadsheets.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/defistate/constantproduct-go/protocols/constantproduct"
	"github.com/defistate/constantproduct-go/simulation"
)

// Format selects how results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// DefaultPrecision is the number of decimal places printed for amounts and prices.
const DefaultPrecision int32 = 6

// ErrUnknownFormat is returned for a Format other than table or csv.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat accepts "table" and "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Writer renders reports in one format.
type Writer struct {
	out       io.Writer
	format    Format
	precision int32
}

// NewWriter returns a Writer for out. precision <= 0 selects DefaultPrecision.
func NewWriter(out io.Writer, format Format, precision int32) (*Writer, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Writer{out: out, format: format, precision: precision}, nil
}

func (w *Writer) num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(w.precision)
}

// Size renders a token amount with an SI suffix, e.g. 1.5k.
func Size(v float64) string {
	number, suffix := humanize.ComputeSI(v)
	return humanize.Ftoa(number) + suffix
}

var resultHeader = []string{"direction", "amount_in", "amount_out", "new_reserve_a", "new_reserve_b", "effective_price", "slippage_pct"}

func (w *Writer) resultRow(res constantproduct.SwapResult) []string {
	return []string{
		res.Direction.String(),
		w.num(res.AmountIn),
		w.num(res.AmountOut),
		w.num(res.NewReserveA),
		w.num(res.NewReserveB),
		w.num(res.EffectivePrice),
		w.num(res.SlippagePercent),
	}
}

// Title separates report sections: a blank line, plus a heading for tables.
func (w *Writer) Title(title string) error {
	var err error
	if w.format == FormatCSV {
		_, err = fmt.Fprintln(w.out)
	} else {
		_, err = fmt.Fprintf(w.out, "\n== %s ==\n", title)
	}
	return err
}

// Pool writes a one-line summary of a pool snapshot.
func (w *Writer) Pool(state constantproduct.PoolState) error {
	if w.format == FormatCSV {
		return w.rows([]string{"reserve_a", "reserve_b", "fee", "k"}, [][]string{{
			w.num(state.ReserveA), w.num(state.ReserveB), w.num(state.Fee), w.num(state.K()),
		}})
	}
	_, err := fmt.Fprintf(w.out, "pool: reserveA=%s reserveB=%s fee=%s%% k=%s\n",
		Size(state.ReserveA), Size(state.ReserveB), decimal.NewFromFloat(state.Fee*100).String(), Size(state.K()))
	return err
}

// Samples writes one row per sample swap.
func (w *Writer) Samples(samples []simulation.Sample) error {
	header := append([]string{"pool_pct"}, resultHeader...)
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, append([]string{humanize.Ftoa(s.Fraction * 100)}, w.resultRow(s.Result)...))
	}
	return w.rows(header, rows)
}

// Curve writes the slippage sweep as (trade size %, slippage %) pairs plus
// the amounts behind each point.
func (w *Writer) Curve(curve []simulation.CurvePoint) error {
	header := []string{"trade_size_pct", "amount_in", "amount_out", "effective_price", "slippage_pct"}
	rows := make([][]string, 0, len(curve))
	for _, pt := range curve {
		rows = append(rows, []string{
			w.num(pt.TradeSizePercent),
			w.num(pt.Result.AmountIn),
			w.num(pt.Result.AmountOut),
			w.num(pt.Result.EffectivePrice),
			w.num(pt.Result.SlippagePercent),
		})
	}
	return w.rows(header, rows)
}

// RoundTrip writes both legs of a round trip and the value lost.
func (w *Writer) RoundTrip(rt simulation.RoundTripReport) error {
	if err := w.rows(resultHeader, [][]string{w.resultRow(rt.Out), w.resultRow(rt.Back)}); err != nil {
		return err
	}
	if w.format == FormatCSV {
		return nil
	}
	_, err := fmt.Fprintf(w.out, "round trip loss: %s (k growth %s%%)\n", w.num(rt.Loss), w.num(rt.Diff.KGrowth*100))
	return err
}

// Sequence writes each trade of a sequential run followed by the pool's
// invariant growth.
func (w *Writer) Sequence(rep simulation.SequenceReport) error {
	header := append([]string{"trade"}, resultHeader...)
	rows := make([][]string, 0, len(rep.Results))
	for i, res := range rep.Results {
		rows = append(rows, append([]string{strconv.Itoa(i + 1)}, w.resultRow(res)...))
	}
	if err := w.rows(header, rows); err != nil {
		return err
	}
	if w.format == FormatCSV {
		return nil
	}
	_, err := fmt.Fprintf(w.out, "k: %s -> %s (growth %s%%)\n", w.num(rep.Diff.KBefore), w.num(rep.Diff.KAfter), w.num(rep.Diff.KGrowth*100))
	return err
}

func (w *Writer) rows(header []string, rows [][]string) error {
	switch w.format {
	case FormatCSV:
		cw := csv.NewWriter(w.out)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	default:
		tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
		}
		return tw.Flush()
	}
}
