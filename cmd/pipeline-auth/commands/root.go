package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/pipeline-auth/internal/app"
	"github.com/florianilch/pipeline-auth/internal/observability"
)

// telemetryFlushTimeout bounds how long exit waits for buffered log records.
const telemetryFlushTimeout = 5 * time.Second

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr).Run(ctx, args)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:           "pipeline-auth",
		Usage:          "Pipeline token helper backed by a GitHub login",
		Reader:         in,
		Writer:         out,
		ErrWriter:      errOut,
		DefaultCommand: "token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigTelemetryExporter),
			},
			&cli.StringFlag{
				Name:  "host--url",
				Usage: "host application URL",
			},
			&cli.StringFlag{
				Name:  "host--auth-uri",
				Usage: "path of the host auth endpoint",
				Value: app.DefaultConfigHostAuthURI,
			},
			&cli.DurationFlag{
				Name:  "host--timeout",
				Usage: "timeout for GitHub and host requests",
				Value: app.DefaultConfigHostTimeout,
			},
			&cli.StringFlag{
				Name:  "github--base-url",
				Usage: "GitHub Enterprise API base URL",
			},
			&cli.StringFlag{
				Name:  "github--note",
				Usage: "note attached to the GitHub authorization",
				Value: app.DefaultConfigGitHubNote,
			},
			&cli.StringSliceFlag{
				Name:  "github--scopes",
				Usage: "scopes requested for the GitHub authorization",
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "token storage (file|keyring|memory)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--dir",
				Usage: "directory for file storage",
			},
			&cli.StringFlag{
				Name:  "storage--keyring-user",
				Usage: "user for keyring storage",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "token",
				Usage:  "print the host token, logging in if needed",
				Action: tokenAction,
			},
			{
				Name:   "github-token",
				Usage:  "print the GitHub token, logging in if needed",
				Action: githubTokenAction,
			},
			{
				Name:   "reset",
				Usage:  "delete cached tokens",
				Action: resetAction,
			},
			{
				Name:   "status",
				Usage:  "show which tokens are cached",
				Action: statusAction,
			},
		},
	}
}

// withApp loads configuration, sets up logging and runs fn with the app.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *app.App) error) (err error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	root := cmd.Root()

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, observability.Settings{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: cfg.Telemetry.Exporter,
		Writer:   root.ErrWriter,
	})
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()
		if shutdownErr := shutdown(flushCtx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	application, err := app.New(cfg, app.WithIO(root.Reader, root.ErrWriter))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return fn(ctx, application)
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
		token, err := a.Token(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.Root().Writer, token)
		return err
	})
}

func githubTokenAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
		token, err := a.GitHubToken(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.Root().Writer, token)
		return err
	})
}

func resetAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
		return a.Reset(ctx)
	})
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
		slots, err := a.Status(ctx)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			state := "not cached"
			if slot.Cached {
				state = "cached"
			}
			if _, err := fmt.Fprintf(cmd.Root().Writer, "%s token: %s (%s)\n", slot.Name, state, slot.Location); err != nil {
				return err
			}
		}
		return nil
	})
}
