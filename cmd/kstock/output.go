package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/kstock/api"
	"github.com/seenimoa/kstock/internal/datasource"
	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// emptySeriesMessage is shown when a security has no bars for the period.
const emptySeriesMessage = "no price history is available for this period"

// compareLabels are the snapshot columns shown by compare.
var compareLabels = []string{
	models.LabelPrice,
	models.LabelChange,
	models.LabelChangeRate,
	models.LabelPER,
	models.LabelPBR,
	models.LabelDividendYield,
}

// History is the result of the history command.
type History struct {
	Security models.SecurityIdentity `json:"security" yaml:"security"`
	Period   models.Period           `json:"period"   yaml:"period"`
	Bars     models.PriceSeries      `json:"bars"     yaml:"bars"`
}

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("output")
	switch f = strings.ToLower(f); f {
	case "", formatTable:
		return formatTable, nil
	case formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid --output %q (want table, json or yaml)", f)
}

// renderer writes command results in the selected format.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(cmd *cobra.Command, w io.Writer) *renderer {
	f, _ := outputFormat(cmd)
	return &renderer{w: w, format: f}
}

// encode writes v as JSON or YAML and reports whether it did.
func (r *renderer) encode(v any) (bool, error) {
	switch r.format {
	case formatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

// Lookup renders a search result.
func (r *renderer) Lookup(l *models.Lookup) error {
	if done, err := r.encode(l); done {
		return err
	}

	fmt.Fprintf(r.w, "%s  [%s]\n\n", l.Security, utils.FormatDateTimeKST(l.FetchedAt))

	if l.Snapshot != nil {
		tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
		for _, m := range l.Snapshot.Metrics {
			fmt.Fprintf(tw, "  %s\t%s\n", m.Label, m.Text)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(r.w)
	}

	fmt.Fprintf(r.w, "Price history (%s)\n", l.Period)
	if err := r.bars(l.Series); err != nil {
		return err
	}

	if len(l.Headlines) > 0 {
		fmt.Fprintln(r.w, "\nHeadlines")
		for _, h := range l.Headlines {
			src := ""
			if h.Source != "" {
				src = " — " + h.Source
			}
			fmt.Fprintf(r.w, "  • %s%s\n    %s\n", h.Title, src, h.Link)
		}
	}

	r.partErrors(l.Errors)
	return nil
}

// History renders a price series.
func (r *renderer) History(h History) error {
	if h.Bars == nil {
		h.Bars = models.PriceSeries{}
	}
	if done, err := r.encode(h); done {
		return err
	}
	fmt.Fprintf(r.w, "%s — %s bars\n", h.Security, h.Period)
	return r.bars(h.Bars)
}

func (r *renderer) bars(s models.PriceSeries) error {
	if s.IsEmpty() {
		fmt.Fprintf(r.w, "  %s\n", emptySeriesMessage)
		return nil
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "  DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\t")
	for _, b := range s {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t\n",
			utils.FormatDate(b.Date),
			won(b.Open), won(b.High), won(b.Low), won(b.Close),
			utils.FormatThousands(b.Volume))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if summary := periodSummary(s); summary != "" {
		fmt.Fprintf(r.w, "  %s\n", summary)
	}
	return nil
}

// periodSummary describes the move from the first close to the last one.
func periodSummary(s models.PriceSeries) string {
	first, ok := s.First()
	if !ok || first.Close.IsZero() {
		return ""
	}
	last, _ := s.Last()
	pct, _ := last.Close.Sub(first.Close).Div(first.Close).Mul(decimal.NewFromInt(100)).Float64()
	return fmt.Sprintf("%s → %s (%s) over %d bars", won(first.Close), won(last.Close), utils.FormatPct(pct), len(s))
}

// Compare renders several lookups side by side.
func (r *renderer) Compare(entries []api.CompareEntry) error {
	if done, err := r.encode(entries); done {
		return err
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tCODE\t%s\n", strings.Join(compareLabels, "\t"))
	for _, e := range entries {
		if e.Lookup == nil {
			fmt.Fprintf(tw, "%s\t-\t%s\n", e.Query, e.Error)
			continue
		}
		cols := make([]string, len(compareLabels))
		for i, label := range compareLabels {
			cols[i] = models.Unavailable
			if e.Lookup.Snapshot != nil {
				if m, ok := e.Lookup.Snapshot.Get(label); ok {
					cols[i] = m.Text
				}
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Lookup.Security.Name, e.Lookup.Security.Code, strings.Join(cols, "\t"))
	}
	return tw.Flush()
}

// Popular renders the popular-search ranking.
func (r *renderer) Popular(rows []models.PopularityRow) error {
	if rows == nil {
		rows = []models.PopularityRow{}
	}
	if done, err := r.encode(rows); done {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.w, "no popular stocks listed right now")
		return nil
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tCODE\tPRICE\tCHANGE\tRATE")
	for _, p := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			p.Rank, p.Name, p.Code, p.CurrentPrice.Text, p.PriorDayDelta.Text, p.PercentChange.Text)
	}
	return tw.Flush()
}

func (r *renderer) partErrors(errs map[string]string) {
	for _, part := range []string{datasource.PartSnapshot, datasource.PartSeries, datasource.PartHeadlines} {
		if msg, ok := errs[part]; ok {
			fmt.Fprintf(r.w, "\n! %s unavailable: %s\n", part, msg)
		}
	}
}

func won(d decimal.Decimal) string {
	if !d.IsInteger() {
		return d.StringFixed(2)
	}
	return utils.FormatThousands(d.IntPart())
}
