package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spigell/resume-optimizer/internal/catalog"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog with availability and circuit state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, err := setup()
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		models := e.Registry.Available()
		if all {
			models = e.Registry.All()
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tTIER\tIN/1K\tOUT/1K\tCONTEXT\tTHINKING\tAVAILABLE\tCIRCUIT")
		for _, m := range catalog.Sorted(models) {
			fmt.Fprintf(w, "%s\t%s\t$%s\t$%s\t%s\t%t\t%t\t%s\n",
				m.ID,
				m.Tier,
				humanize.FtoaWithDigits(m.InputCostPer1K, 6),
				humanize.FtoaWithDigits(m.OutputCostPer1K, 6),
				humanize.Comma(int64(m.MaxContextTokens)),
				m.SupportsThinking,
				e.Registry.Configured(m.Provider),
				e.Models.State(string(m.Provider)),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Fprintln(os.Stderr, "no models available; set one of "+strings.Join([]string{
				"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
			}, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolP("all", "a", false, "include models whose provider has no credentials")
}
