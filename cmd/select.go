package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/optimizer"
	"github.com/spigell/resume-optimizer/internal/tasks"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Print the optimized model configuration for a task",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}
		// The selection registers a pending request; persist it.
		defer closeEngine(e, logger)

		in, err := taskInput(cmd)
		if err != nil {
			return err
		}

		cfg, err := e.Optimizer.SelectOptimizedModel(in)
		if err != nil {
			logger.Error("selecting a model", zap.String("task", in.Task), zap.Error(err))
			return err
		}

		return printJSON(cfg)
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
	addTaskFlags(selectCmd)
}

func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("task", "t", "", "task name; asks interactively when empty")
	cmd.Flags().StringP("provider", "p", "", "preferred provider (anthropic, openai, google)")
	cmd.Flags().String("content-file", "", "resume or other content to analyze")
	cmd.Flags().String("job-file", "", "job description to analyze")
	cmd.Flags().String("industry", "", "industry of the target role")
	cmd.Flags().StringArray("override", nil, "classification override as key=value (complexity, importance, tier, cost_sensitivity)")
}

// taskInput collects the optimizer input from the shared task flags.
func taskInput(cmd *cobra.Command) (optimizer.Input, error) {
	task, _ := cmd.Flags().GetString("task")
	if task == "" {
		picked, err := pickTask()
		if err != nil {
			return optimizer.Input{}, err
		}
		task = picked
	}

	content, err := readFileFlag(cmd, "content-file")
	if err != nil {
		return optimizer.Input{}, err
	}
	job, err := readFileFlag(cmd, "job-file")
	if err != nil {
		return optimizer.Input{}, err
	}

	provider, _ := cmd.Flags().GetString("provider")
	industry, _ := cmd.Flags().GetString("industry")
	raw, _ := cmd.Flags().GetStringArray("override")

	overrides, err := parseOverrides(raw)
	if err != nil {
		return optimizer.Input{}, err
	}

	return optimizer.Input{
		Task:              task,
		Content:           content,
		JobDescription:    job,
		Industry:          industry,
		PreferredProvider: provider,
		Overrides:         overrides,
	}, nil
}

func pickTask() (string, error) {
	prompt := promptui.Select{
		Label: "Task",
		Items: tasks.Names,
		Size:  len(tasks.Names),
	}

	_, task, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("choosing a task: %w", err)
	}
	return task, nil
}

// parseOverrides turns key=value pairs into the override map. Numbers are
// passed as numbers; validation happens in the optimizer.
func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q: expected key=value", pair)
		}

		value = strings.TrimSpace(value)
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = f
			continue
		}
		out[key] = value
	}
	return out, nil
}
