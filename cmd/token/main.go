package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/complaintdesk/complaintdesk/infrastructure/config"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/jwt"
	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// token mints a development access token signed with the server's JWT_SECRET.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVarP(&userID, "user", "u", "", "subject id (required)")
	flagSet.StringVarP(&role, "role", "r", string(domain.RoleSubmitter), "subject role: submitter or reviewer")
	flagSet.DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_ACCESS_TOKEN_TTL)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	parsedRole, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	tokens, err := jwt.NewJWTService(cfg)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = cfg.AccessTokenTTL
	}
	token, err := tokens.GenerateAccessTokenWithTTL(domain.Subject{ID: userID, Role: parsedRole}, ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
