package main

import (
	"errors"
	"fmt"
	"time"

	"tenantcrm/internal/middleware"
	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var tokenFlags struct {
	user   string
	tenant string
	role   string
	admin  bool
	ttl    time.Duration
}

// tokenCmd mints an HS256 token for local use. It needs JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := bootstrap()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return errors.New("JWT_SECRET is required to sign tokens")
		}

		p := models.Principal{PlatformAdmin: tokenFlags.admin}
		if p.UserID, err = parseOptionalUUID(tokenFlags.user); err != nil {
			return fmt.Errorf("--user: %w", err)
		}
		if p.UserID == uuid.Nil {
			p.UserID = uuid.New()
		}
		if p.TenantID, err = parseOptionalUUID(tokenFlags.tenant); err != nil {
			return fmt.Errorf("--tenant: %w", err)
		}
		if p.RoleID, err = parseOptionalUUID(tokenFlags.role); err != nil {
			return fmt.Errorf("--role: %w", err)
		}

		tok, err := middleware.SignToken(cfg.JWT.Secret, p, tokenFlags.ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.user, "user", "", "user id (random when empty)")
	f.StringVar(&tokenFlags.tenant, "tenant", "", "tenant id")
	f.StringVar(&tokenFlags.role, "role", "", "role id")
	f.BoolVar(&tokenFlags.admin, "platform-admin", false, "grant platform administration")
	f.DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "token lifetime")
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
