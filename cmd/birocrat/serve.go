package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/birocrat/internal/cli"
	"github.com/aretw0/birocrat/internal/logging"
	httpadapter "github.com/aretw0/birocrat/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long: `Serves the forms under the given directory as a JSON API over HTTP.
Configuration is read from BIROCRAT_* environment variables; flags override.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := cli.LoadServeConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("forms") {
			cfg.FormsDir, _ = cmd.Flags().GetString("forms")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store, _ = cmd.Flags().GetString("store")
		}

		debug, _ := cmd.Flags().GetBool("debug")
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		h, closeBackend, err := cli.NewHost(cfg, logger)
		if err != nil {
			fmt.Printf("Error building host: %v\n", err)
			os.Exit(1)
		}
		defer closeBackend()

		server, err := httpadapter.New(h, httpadapter.WithLogger(logger))
		if err != nil {
			fmt.Printf("Error building server: %v\n", err)
			os.Exit(1)
		}

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("birocrat server listening", "addr", cfg.Addr, "forms", cfg.FormsDir, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "error", err)
				}
			}
			logger.Info("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("forms", ".", "Directory containing form bundles")
	serveCmd.Flags().String("store", "memory", "Session store backend: memory, file, or redis")
}
