package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"taskpilot/internal/httpapi"
)

var (
	serveAddr    string
	serveOrigins []string
	serveMCP     []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mission queue over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, serveMCP)
		if err != nil {
			return err
		}
		defer a.Close()

		if !flagVerbose {
			gin.SetMode(gin.ReleaseMode)
		}
		a.supervisor.Start(ctx)
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.New(a.supervisor, a.registry, httpapi.Options{AllowOrigins: serveOrigins}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("HTTP API listening", "addr", cfg.HTTPAddr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	f.StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins")
	f.StringArrayVar(&serveMCP, "mcp", nil, "external tool server command")
}
