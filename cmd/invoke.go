package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/optimizer"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Select a model for a task and send it the prompt, falling back on failure",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}
		defer closeEngine(e, logger)

		prompt, err := readFileFlag(cmd, "prompt-file")
		if err != nil {
			return err
		}
		if prompt == "" {
			return errors.New("--prompt-file is required")
		}

		in, err := taskInput(cmd)
		if err != nil {
			return err
		}

		cfg, err := e.Optimizer.SelectOptimizedModel(in)
		if err != nil {
			return fmt.Errorf("selecting a model: %w", err)
		}
		if cfg.Metadata != nil {
			prompt = optimizer.OptimizePrompt(prompt, cfg.Metadata.Complexity, cfg.Metadata.ExcludeExamples)
		}

		invoker, err := e.Invoker(cmd.Context())
		if err != nil {
			return err
		}

		res, err := invoker.Invoke(cmd.Context(), cfg, prompt)
		if err != nil {
			logger.Error("invoking models", zap.String("task", in.Task), zap.Error(err))
			return err
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			return printJSON(res)
		}
		_, err = fmt.Println(res.Text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	addTaskFlags(invokeCmd)
	invokeCmd.Flags().String("prompt-file", "", "prompt to send")
	invokeCmd.Flags().Bool("raw", false, "print the full result with usage and cost as JSON")
}
