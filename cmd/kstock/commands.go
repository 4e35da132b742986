package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/kstock/api"
	"github.com/seenimoa/kstock/internal/datasource"
	"github.com/seenimoa/kstock/internal/series"
	"github.com/seenimoa/kstock/pkg/models"
)

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Resolve a company name and show its quote and price history",
	Example: `  kstock search 삼성전자
  kstock search 카카오 --period week --news`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFlag(cmd)
		if err != nil {
			return err
		}
		withNews, _ := cmd.Flags().GetBool("news")

		res, err := stack.Aggregator.Lookup(cmd.Context(), args[0], period, withNews)
		if err != nil {
			return err
		}
		return newRenderer(cmd, os.Stdout).Lookup(res)
	},
}

// --- History Command ---

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show the price history of a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFlag(cmd)
		if err != nil {
			return err
		}
		sec, err := stack.KRX.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		pages, _ := cmd.Flags().GetInt("pages")
		if pages <= 0 {
			pages = stack.Aggregator.Depth().PagesFor(period)
		}
		bars, err := stack.Naver.GetSeries(cmd.Context(), sec.Code, pages)
		if err != nil {
			return err
		}
		return newRenderer(cmd, os.Stdout).History(History{
			Security: sec,
			Period:   period,
			Bars:     series.Resample(bars, period),
		})
	},
}

// --- Compare Command ---

var compareCmd = &cobra.Command{
	Use:   "compare <name> <name>...",
	Short: "Compare quotes of several companies side by side",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := periodFlag(cmd)
		if err != nil {
			return err
		}
		results, errs := stack.Aggregator.Compare(cmd.Context(), args, period)
		entries := make([]api.CompareEntry, len(args))
		for i, q := range args {
			entries[i] = api.CompareEntry{Query: q, Lookup: results[i], Error: datasource.Describe(errs[i])}
		}
		return newRenderer(cmd, os.Stdout).Compare(entries)
	},
}

// --- Popular Command ---

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Show the most searched stocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Popular.Limit
		}
		rows, err := stack.Aggregator.Popular(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return newRenderer(cmd, os.Stdout).Popular(rows)
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, historyCmd, compareCmd} {
		c.Flags().StringP("period", "p", string(models.PeriodDay), "bar period (day, week, month)")
	}
	searchCmd.Flags().Bool("news", false, "include recent headlines")
	historyCmd.Flags().Int("pages", 0, "daily pages to read (default from config)")
	popularCmd.Flags().IntP("limit", "n", 0, "number of rows (default from config)")
}

func periodFlag(cmd *cobra.Command) (models.Period, error) {
	raw, _ := cmd.Flags().GetString("period")
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return "", fmt.Errorf("invalid --period: %w", err)
	}
	return p, nil
}
