package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/config"
	"github.com/spigell/resume-optimizer/internal/engine"
	"github.com/spigell/resume-optimizer/internal/logger"
)

const (
	app = "resume-optimizer"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "resume-optimizer picks the model, token budget and fallbacks for resume tasks and tracks what they cost",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	if err := config.SetDefaults(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+app+".yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The file is optional unless given explicitly; env and defaults cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// setup builds the logger and the engine every command works with.
func setup() (*zap.Logger, *engine.Engine, error) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return logger, nil, fmt.Errorf("loading config: %w", err)
	}

	e, err := engine.New(cfg, logger)
	if err != nil {
		return logger, nil, fmt.Errorf("building engine: %w", err)
	}

	return logger, e, nil
}

// closeEngine writes the final cost snapshot.
func closeEngine(e *engine.Engine, logger *zap.Logger) {
	if err := e.Close(); err != nil {
		logger.Error("writing cost snapshot", zap.Error(err))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readFileFlag(cmd *cobra.Command, name string) (string, error) {
	path, err := cmd.Flags().GetString(name)
	if err != nil || path == "" {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading --%s: %w", name, err)
	}
	return string(data), nil
}
