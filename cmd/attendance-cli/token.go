package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
)

func tokenCmd(verbose *bool) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := loadConfig(*verbose)
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			auth := service.NewAuthService(service.AuthConfig{Secret: cfg.Auth.Secret, Expiration: cfg.Auth.Expiration}, logr)
			issued, err := auth.IssueToken(subject, models.Role(role), ttl)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), issued)
			}
			fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
			if !cfg.Auth.Enabled {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: AUTH_ENABLED is false, the API does not check tokens")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, usually a staff id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTeacher), "ADMIN, TEACHER or VIEWER")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (defaults to JWT_EXPIRATION)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
