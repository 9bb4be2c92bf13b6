package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "portal-server",
		Usage: "Customer portal access token service",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Print migration status instead of applying",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrate(ctx, cmd.Bool("status"))
				},
			},
			{
				Name:  "issue-token",
				Usage: "Issue a customer portal token on behalf of a staff user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Aliases: []string{"u"}, Required: true, Usage: "Staff user ID performing the issue"},
					&cli.StringFlag{Name: "client-id", Aliases: []string{"c"}, Required: true, Usage: "Client the token is scoped to"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Holder email"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Holder display name"},
					&cli.IntFlag{Name: "expires-days", Aliases: []string{"d"}, Usage: "Lifetime in days (0 uses the configured default)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runIssueToken(ctx, issueTokenArgs{
						userID:      cmd.String("user-id"),
						clientID:    cmd.String("client-id"),
						email:       cmd.String("email"),
						name:        cmd.String("name"),
						expiresDays: cmd.Int("expires-days"),
					})
				},
			},
			{
				Name:  "revoke-token",
				Usage: "Revoke a customer portal token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Aliases: []string{"u"}, Required: true, Usage: "Staff user ID performing the revoke"},
					&cli.StringFlag{Name: "token-id", Aliases: []string{"t"}, Required: true, Usage: "Token record ID"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runRevokeToken(ctx, cmd.String("user-id"), cmd.String("token-id"))
				},
			},
			{
				Name:  "sweep-expired",
				Usage: "Deactivate expired portal tokens once and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runSweepExpired(ctx)
				},
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
