package cmd

import (
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Record token usage of a call made outside this tool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}
		defer closeEngine(e, logger)

		model, _ := cmd.Flags().GetString("model")
		task, _ := cmd.Flags().GetString("task")
		requestID, _ := cmd.Flags().GetString("request-id")
		in, _ := cmd.Flags().GetInt("input-tokens")
		out, _ := cmd.Flags().GetInt("output-tokens")

		if model == "" {
			return errors.New("--model is required")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}

		b := e.Ledger.Track(cmd.Context(), model, task, requestID, in, out)
		if !b.Known {
			logger.Warn("usage was not recorded", zap.String("ai_model", model))
		}

		return printJSON(b)
	},
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().StringP("model", "m", "", "provider-qualified model id, e.g. google:gemini-2.5-flash")
	trackCmd.Flags().StringP("task", "t", "", "task name")
	trackCmd.Flags().String("request-id", "", "request id; generated when empty")
	trackCmd.Flags().Int("input-tokens", 0, "prompt tokens")
	trackCmd.Flags().Int("output-tokens", 0, "completion tokens")
}
