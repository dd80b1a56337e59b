// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/util"
)

// errLedgerDisabled is returned by stats when [telemetry] is off.
var errLedgerDisabled = errors.New("the energy ledger is disabled (telemetry.enabled = false)")

func statsCmd(a *app) *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show energy used and saved",
		Long: `Summarize the energy ledger: queries per routing path, energy used, the
all-cloud baseline and the energy saved against it.`,
		Example: `  seven stats
  seven stats --days 7
  seven stats --recent 10
  seven stats --prune 90`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, f := range []struct {
				name string
				v    int
			}{{"--days", opts.days}, {"--recent", opts.recent}, {"--prune", opts.prune}} {
				if f.v < 0 {
					return &UsageError{Message: fmt.Sprintf("%s must not be negative, got %d", f.name, f.v)}
				}
			}
			return a.runStats(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.days, "days", 0, "only count the last N days (0 = all time)")
	cmd.Flags().IntVar(&opts.recent, "recent", 0, "also list the N most recent queries")
	cmd.Flags().IntVar(&opts.prune, "prune", 0, "delete ledger rows older than N days before summarizing")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the totals as JSON")
	return cmd
}

type statsOptions struct {
	days    int
	recent  int
	prune   int
	jsonOut bool
}

func (a *app) runStats(cmd *cobra.Command, opts statsOptions) error {
	days := opts.days
	ledger, err := openLedger(a.cfg)
	if err != nil {
		return &CommandError{Command: "stats", Reason: "opening ledger", Err: err}
	}
	if ledger == nil {
		return &CommandError{Command: "stats", Reason: "no ledger", Err: errLedgerDisabled, Code: ExitConfigError}
	}
	defer ledger.Close()

	ctx := cmd.Context()
	var pruned *int64
	if opts.prune > 0 {
		n, err := ledger.DeleteBefore(ctx, time.Now().AddDate(0, 0, -opts.prune))
		if err != nil {
			return &CommandError{Command: "stats", Reason: "pruning ledger", Err: err}
		}
		pruned = &n
	}

	var since time.Time
	if days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}
	totals, err := ledger.Totals(ctx, since)
	if err != nil {
		return &CommandError{Command: "stats", Reason: "reading totals", Err: err}
	}

	data := StatsData{
		Ledger:     ledger.Path(),
		Totals:     totals,
		Pruned:     pruned,
		Equivalent: energy.RandomEquivalent(totals.SavedWh),
	}
	if days > 0 {
		if data.Daily, err = ledger.Daily(ctx, days); err != nil {
			return &CommandError{Command: "stats", Reason: "reading daily totals", Err: err}
		}
	}

	if opts.recent > 0 {
		if data.Recent, err = ledger.Recent(ctx, opts.recent); err != nil {
			return &CommandError{Command: "stats", Reason: "reading recent entries", Err: err}
		}
	}

	if opts.jsonOut {
		return NewJSONResponse("stats", data).Print(cmd.OutOrStdout())
	}
	printStats(cmd.OutOrStdout(), data, days)
	return nil
}

func printStats(w io.Writer, data StatsData, days int) {
	t := data.Totals
	window := "all time"
	if days > 0 {
		window = fmt.Sprintf("last %d days", days)
	}

	fmt.Fprintln(w, TitleStyle.Render("=== SEVEN Energy Ledger ==="))
	fmt.Fprintln(w, RenderLabel("Ledger:")+DimStyle.Render(data.Ledger))
	if data.Pruned != nil {
		fmt.Fprintln(w, RenderLabel("Pruned:")+ValueStyle.Render(fmt.Sprintf("%d rows", *data.Pruned)))
	}
	fmt.Fprintln(w, RenderLabel("Window:")+ValueStyle.Render(window))
	fmt.Fprintln(w, RenderLabel("Queries:")+ValueStyle.Render(fmt.Sprint(t.Queries)))

	paths := make([]string, 0, len(t.ByPath))
	for p := range t.ByPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s %d\n", util.PadWidth(p, 34), t.ByPath[p])
	}

	fmt.Fprintln(w, RenderLabel("Energy used:")+ValueStyle.Render(formatWh(t.UsedWh)))
	fmt.Fprintln(w, RenderLabel("Cloud baseline:")+ValueStyle.Render(formatWh(t.BaselineWh)))
	fmt.Fprintln(w, RenderLabel("Energy saved:")+HighlightStyle.Render(formatWh(t.SavedWh)))

	if len(data.Daily) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("By day"))
		for _, d := range data.Daily {
			fmt.Fprintf(w, "  %s %s %s %s\n",
				util.PadWidth(d.Date, 12),
				util.PadWidth(fmt.Sprint(d.Queries), 6),
				util.PadWidth(formatWh(d.UsedWh), 12),
				HighlightStyle.Render(formatWh(d.SavedWh)))
		}
	}

	if len(data.Recent) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Recent"))
		for _, e := range data.Recent {
			saved := "-"
			if e.SavedWh != nil {
				saved = formatWh(*e.SavedWh)
			}
			fmt.Fprintf(w, "  %s %s %s %s\n",
				DimStyle.Render(e.Timestamp.Local().Format("01-02 15:04")),
				util.PadWidth(e.Path, 34),
				util.PadWidth(saved, 12),
				util.TruncateWidth(e.PromptPreview, 40))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, data.Equivalent)
}
