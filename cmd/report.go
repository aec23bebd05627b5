package cmd

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spigell/resume-optimizer/internal/costs"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print accumulated usage and cost",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, err := setup()
		if err != nil {
			return err
		}

		snap := e.Ledger.Report()
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			return printJSON(snap)
		}

		fmt.Printf("requests: %s  tokens: %s  cost: $%s\n\n",
			humanize.Comma(int64(snap.Totals.Requests)),
			humanize.Comma(int64(snap.TotalTokens)),
			humanize.FtoaWithDigits(snap.TotalCost, 4),
		)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tREQUESTS\tTOKENS\tCOST")
		for _, id := range sortedKeys(snap.Models) {
			u := snap.Models[id]
			fmt.Fprintf(w, "%s\t%d\t%s\t$%s\n", id, u.Requests, humanize.Comma(int64(u.TotalTokens)), humanize.FtoaWithDigits(u.Cost, 4))
		}
		fmt.Fprintln(w, "\t\t\t")
		fmt.Fprintln(w, "TASK\tREQUESTS\tTOKENS\tCOST")
		for _, name := range sortedKeys(snap.Tasks) {
			u := snap.Tasks[name]
			fmt.Fprintf(w, "%s\t%d\t%s\t$%s\n", name, u.Requests, humanize.Comma(int64(u.TotalTokens)), humanize.FtoaWithDigits(u.Cost, 4))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		printBudget(snap.BudgetStatus)
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Print daily and monthly spend against the limits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, err := setup()
		if err != nil {
			return err
		}

		status := e.Ledger.BudgetStatus()
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			return printJSON(status)
		}

		printBudget(status)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Write a final cost snapshot and start tracking from zero",
	RunE: func(_ *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}

		e.Ledger.Reset()
		// The empty ledger becomes the newest snapshot so the next run restores zero.
		closeEngine(e, logger)
		return nil
	},
}

func printBudget(s costs.BudgetStatus) {
	period := func(name string, p costs.PeriodStatus) {
		limit := "unlimited"
		if p.Limit > 0 {
			limit = "$" + humanize.FtoaWithDigits(p.Limit, 2)
		}
		fmt.Printf("%-8s $%s of %s (%s%%) %s\n", name,
			humanize.FtoaWithDigits(p.Spent, 4), limit,
			humanize.FtoaWithDigits(p.PercentUsed, 1), p.Status)
	}

	period("daily", s.Daily)
	period("monthly", s.Monthly)
	fmt.Printf("status   %s\n", s.Status)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(reportCmd, budgetCmd, resetCmd)

	reportCmd.Flags().Bool("raw", false, "print the full snapshot as JSON")
	budgetCmd.Flags().Bool("raw", false, "print the status as JSON")
}
