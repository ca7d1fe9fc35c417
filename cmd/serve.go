package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feature generators over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv, err := newHTTPServer(servePort)
		if err != nil {
			return err
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newHTTPServer wires the API router from config. A zero port selects
// server.port.
func newHTTPServer(port int) (*http.Server, error) {
	opts, err := cfg.Features.Options()
	if err != nil {
		return nil, err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	s := api.NewServer(api.Options{
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxPoints:      cfg.Server.MaxPoints,
		MaxCells:       cfg.Fishnet.MaxCells,
		FeatureOptions: opts,
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
