package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "resights/internal/jwt_token"
	"resights/internal/platform/config"
)

// newTokenCmd mints an access token for the API, signed with JWT_SIGNING_KEY.
func newTokenCmd() *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return configurationError(err)
			}
			if cfg.Server.JWTSigningKey == "" {
				return configurationError(errors.New("JWT_SIGNING_KEY is not set"))
			}
			svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
			token, err := svc.GenerateAccessToken(subject, scope, ttl)
			if err != nil {
				return configurationError(fmt.Errorf("sign token: %w", err))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev", "token subject")
	cmd.Flags().StringVar(&scope, "scope", "registry:read", "token scope")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
