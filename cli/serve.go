package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/latexbot/server"
)

func newServeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latex command over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e, cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = e.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context, e *env, cmd *cobra.Command) (err error) {
	a, err := e.build(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Server.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, a.Shutdown(shutdownCtx))
	}()

	sc := e.cfg.Server
	srv, err := server.New(server.Config{
		Addr:            sc.Addr,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		MaxQueryBytes:   sc.MaxQueryBytes,
		Handler:         a.Handler,
		Health:          a.Health,
		Auth:            a.Auth,
		Metrics:         a.Metrics,
		Logger:          a.Logger,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
