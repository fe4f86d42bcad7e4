package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"folio/internal/services"
)

type snapshotCmd struct {
	at string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "recompute and persist a portfolio snapshot" }
func (*snapshotCmd) Usage() string {
	return `folio snapshot [-at <date>]

  Replays every transaction, values the portfolio at the given instant
  (default now) and persists the snapshot. Rerunning for the same instant
  replaces the stored snapshot only if its content changed.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.at, "at", "", "Snapshot instant, RFC3339 or YYYY-MM-DD (defaults to now).")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var at time.Time
	if c.at != "" {
		parsed, err := parseDate(c.at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -at: %v\n", err)
			return subcommands.ExitUsageError
		}
		at = parsed
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.svcs.Snapshots.RunSnapshot(ctx, at, services.TriggerCLI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Snapshot failed: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Run %s: %s\n", res.Run.ID, res.Run.Status)
	for _, w := range res.Run.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if res.Snapshot != nil && res.Snapshot.Portfolio != nil {
		total := res.Snapshot.Portfolio.Total
		fmt.Printf("Value %s, total P&L %s\n",
			formatAmount(total.MarketValue, a.cfg.SettlementCurrency),
			formatAmount(total.TotalPnL, a.cfg.SettlementCurrency))
	}
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	raw bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the live portfolio valuation" }
func (*holdingsCmd) Usage() string {
	return `folio holdings [-raw]

  Values every open position at the latest recorded prices and prints a
  table per portfolio type with the grand totals.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown instead of rendering it.")
}

func (c *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.svcs.Portfolio.GetPortfolio(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Valuation failed: %v\n", err)
		return subcommands.ExitFailure
	}

	md := holdingsMarkdown(p, a.cfg.SettlementCurrency)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(160))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

type refreshPricesCmd struct{}

func (*refreshPricesCmd) Name() string     { return "refresh-prices" }
func (*refreshPricesCmd) Synopsis() string { return "fetch market prices for every open position" }
func (*refreshPricesCmd) Usage() string {
	return `folio refresh-prices

  Fetches a quote for each open position from Yahoo (equities) or CoinGecko
  (crypto), converts it to the settlement currency and records it.
`
}

func (*refreshPricesCmd) SetFlags(*flag.FlagSet) {}

func (*refreshPricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.svcs.Refresher.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%d instruments, %d prices fetched, %d recorded in %s\n",
		res.Instruments, res.PricesFetched, res.PricesRecorded, res.Duration.Round(time.Millisecond))
	if len(res.ErrorMessages) > 0 {
		fmt.Println(strings.Join(res.ErrorMessages, "\n"))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
