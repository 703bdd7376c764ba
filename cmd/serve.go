package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blogicum/config"
	"blogicum/web"
)

var serveFlags = map[string]cobraflags.Flag{
	config.KeyAddr: &cobraflags.StringFlag{
		Name:  config.KeyAddr,
		Value: config.DefaultAddr,
		Usage: "HTTP listen address",
	},
	config.KeyPageSize: &cobraflags.IntFlag{
		Name:  config.KeyPageSize,
		Value: config.DefaultPageSize,
		Usage: "Number of posts on the index page",
	},
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the public blog pages and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd, args, v)
		},
	}
	cobraflags.RegisterMap(serveCmd, commonFlags)
	cobraflags.RegisterMap(serveCmd, serveFlags)
	return serveCmd
}

func serveCommand(cmd *cobra.Command, _ []string, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, cmd, v)
	if err != nil {
		return err
	}
	defer a.close()

	gin.SetMode(gin.ReleaseMode)
	srv := web.NewServer(a.blog(), a.cfg.PageSize).WithLogger(a.logger)
	httpSrv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Listening", "addr", a.cfg.Addr, "page_size", a.cfg.PageSize, "search", a.cfg.SearchEngine)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
