package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/optimizer"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Trim a prompt according to the task's optimization strategy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}

		text, err := readFileFlag(cmd, "prompt-file")
		if err != nil {
			return err
		}
		if text == "" {
			return errors.New("--prompt-file is required")
		}

		in, err := taskInput(cmd)
		if err != nil {
			return err
		}

		cls := e.Optimizer.ClassifyTask(in)
		strategy := optimizer.StrategyFor(cls.Complexity)
		optimized := optimizer.OptimizePrompt(text, cls.Complexity, strategy.ExcludeExamples)

		logger.Debug("prompt optimized",
			zap.String("task", in.Task),
			zap.Stringer("complexity", cls.Complexity),
			zap.Int("before", len(text)),
			zap.Int("after", len(optimized)),
		)

		_, err = fmt.Println(optimized)
		return err
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	addTaskFlags(promptCmd)
	promptCmd.Flags().String("prompt-file", "", "prompt to optimize")
}
