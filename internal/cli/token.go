package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwtmw "fx_backend/internal/platform/jwt"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the ingest endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HTTP.JWTSecret == "" {
			return errors.New("http.jwt_secret is not configured")
		}
		token, err := jwtmw.NewGenerator(cfg.HTTP.JWTSecret, tokenTTL).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
