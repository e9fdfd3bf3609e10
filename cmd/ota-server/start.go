package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/discovery"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newStartCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the OTA server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loadErr, err := config.LoadOrDefault(configPath())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, cleanup, err := initializeApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if loadErr != nil {
				app.Logger.Warn("using default configuration", "config", configPath(), "error", loadErr)
			}

			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Addr())
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
			}

			return serve(ctx, app, ln)
		},
	}
}

// serve runs the HTTP server and the announcer until ctx is done, then
// shuts the server down gracefully.
func serve(ctx context.Context, app *application, ln net.Listener) error {
	logger := app.Logger
	cfg := app.Config

	srv := &http.Server{
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grp, gctx := errgroup.WithContext(ctx)

	// Run the server
	grp.Go(func() error {
		logger.Info(fmt.Sprintf("OTA Server running on http://%s", ln.Addr()),
			"kernels_dir", cfg.Paths.KernelsDir,
			"metadata_dir", cfg.Paths.MetadataDir)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			return err
		}
		return nil
	})

	// Discovery is informational; clients with a known address still work without it.
	if app.Announcer != nil {
		grp.Go(func() error {
			if err := <-app.Announcer.Start(gctx); err != nil {
				logger.Warn("mdns advertisement failed, continuing without discovery", "error", err)
				return nil
			}
			logger.Info("mDNS service started - advertising as " + discovery.ServiceFQDN)

			<-gctx.Done()
			app.Announcer.Stop()
			return nil
		})
	}

	// Shutdown handler
	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", "error", err)
			return err
		}

		logger.Info("http server shutdown complete")
		return nil
	})

	return grp.Wait()
}
