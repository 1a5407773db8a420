package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/beanflow/beanflow/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import API over HTTP",
		Long: `Serve the import pipeline over HTTP.

Endpoints: POST /api/v1/import/:source, POST /api/v1/train,
POST /api/v1/predict, GET /healthz.`,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.engine.EnsureTrained(ctx); err != nil {
		slog.Warn("No trained model cached, prediction endpoints will return 409 until trained", "error", err)
	}

	server := api.NewServer(a.engine, a.cfg, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(viper.GetString("server.addr"))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
