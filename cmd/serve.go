package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/engine"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve read-only budget, report and circuit status over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, e, err := setup()
		if err != nil {
			return err
		}
		defer closeEngine(e, logger)

		addr, _ := cmd.Flags().GetString("addr")
		ctx := cmd.Context()

		go e.Gate.Run(ctx)

		srv := &http.Server{
			Addr:              addr,
			Handler:           e.Gate.Middleware(statusMux(e)),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			logger.Info("serving status", zap.String("addr", addr))
			errs <- srv.ListenAndServe()
		}()

		select {
		case err := <-errs:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func statusMux(e *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"status":           "ok",
			"available_models": len(e.Registry.Available()),
			"in_flight":        e.Gate.InFlight(),
		})
	})
	mux.HandleFunc("GET /budget", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, e.Ledger.BudgetStatus())
	})
	mux.HandleFunc("GET /report", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, e.Ledger.Report())
	})
	mux.HandleFunc("GET /circuits", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"models":    e.Models.Snapshot(),
			"admission": e.Admission.Snapshot(),
			"routes":    e.Gate.Snapshot(),
		})
	})
	mux.HandleFunc("GET /models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, catalog.Sorted(e.Registry.Available()))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
}
