package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spigell/resume-optimizer/internal/content"
	"github.com/spigell/resume-optimizer/internal/tasks"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

type thinkingResult struct {
	Complexity tasks.Complexity `json:"complexity"`
	Provider   string           `json:"provider"`
	Budget     int              `json:"budget"`
	Config     thinking.Config  `json:"thinking_config"`
	Metrics    *content.Metrics `json:"metrics,omitempty"`
}

var thinkingCmd = &cobra.Command{
	Use:   "thinking",
	Short: "Compute a thinking budget for a complexity level and provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, err := setup()
		if err != nil {
			return err
		}

		doc, err := readFileFlag(cmd, "content-file")
		if err != nil {
			return err
		}
		job, err := readFileFlag(cmd, "job-file")
		if err != nil {
			return err
		}
		industry, _ := cmd.Flags().GetString("industry")
		provider, _ := cmd.Flags().GetString("provider")
		level, _ := cmd.Flags().GetString("complexity")

		res := thinkingResult{Provider: provider}
		if level != "" {
			if res.Complexity, err = tasks.ParseComplexity(level); err != nil {
				return err
			}
		}

		opts := thinking.Options{Factors: thinking.Factors{}}
		if doc != "" || job != "" {
			complexity, metrics := content.Classify(doc, job, industry)
			if level == "" {
				res.Complexity = complexity
			}
			res.Metrics = &metrics
			opts.Metrics = &metrics
		}
		for _, name := range []string{thinking.FactorImportance, thinking.FactorTimeSensitive, thinking.FactorQualityCritical} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetFloat64(name)
				opts.Factors[name] = v
			}
		}

		if cmd.Flags().Changed("min") {
			v, _ := cmd.Flags().GetInt("min")
			opts.Min = &v
		}
		opts.Max, _ = cmd.Flags().GetInt("max")

		res.Budget, res.Config = e.Thinking.Budget(res.Complexity, provider, opts)
		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(thinkingCmd)

	thinkingCmd.Flags().StringP("complexity", "c", "", "complexity level; derived from the content when empty")
	thinkingCmd.Flags().StringP("provider", "p", "anthropic", "provider to format the config for")
	thinkingCmd.Flags().String("content-file", "", "content to analyze")
	thinkingCmd.Flags().String("job-file", "", "job description to analyze")
	thinkingCmd.Flags().String("industry", "", "industry of the target role")
	thinkingCmd.Flags().Float64(thinking.FactorImportance, 0, "importance factor in [0,1]")
	thinkingCmd.Flags().Float64(thinking.FactorTimeSensitive, 0, "time sensitivity factor in [0,1]")
	thinkingCmd.Flags().Float64(thinking.FactorQualityCritical, 0, "quality factor in [0,1]")
	thinkingCmd.Flags().Int("min", 0, "minimum budget for this call; the configured minimum when unset")
	thinkingCmd.Flags().Int("max", 0, "maximum budget for this call; the configured maximum when 0")
}
