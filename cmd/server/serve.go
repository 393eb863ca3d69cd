package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "resights/internal/jwt_token"
	"resights/internal/platform/httpserver"
	"resights/internal/platform/middleware"
	httptransport "resights/internal/transport/http"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *flags, appOptions{
				logWriter:  cmd.OutOrStdout(),
				registerer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RESIGHTS_ADDR)")
	return cmd
}

// serve runs the API until ctx is canceled, then drains in-flight requests
// within the configured shutdown timeout.
func serve(ctx context.Context, a *app) error {
	routerCfg := httptransport.RouterConfig{
		Gatherer: prometheus.DefaultGatherer,
		Logger:   a.logger,
	}
	if key := a.cfg.Server.JWTSigningKey; key != "" {
		routerCfg.Validator = middleware.TokenValidatorFunc(
			jwttoken.NewJWTService(key, a.cfg.Server.JWTIssuer, a.cfg.Server.JWTAudience).ValidateSubject,
		)
	} else {
		a.logger.Warn("JWT_SIGNING_KEY not set, API routes are unauthenticated")
	}

	handler := httptransport.NewRegistryHandler(a.service, a.logger)
	srv := httpserver.New(a.cfg.Server.Addr, httptransport.NewRouter(handler, routerCfg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting resights API", "addr", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down resights API")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
