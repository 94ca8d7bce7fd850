package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/console-auth/config"
	"github.com/target/console-auth/internal/bootstrap"
	"github.com/target/console-auth/internal/migrate"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	bootstrap.SetLogLevel(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in interactively against the configured identity provider",
			run:         runLogin,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations (or show their status with -status)",
			run:         runMigrations,
		},
		"audit-tail": {
			name:        "audit-tail",
			description: "List recent auth audit events",
			run:         runAuditTail,
		},
		"audit-purge": {
			name:        "audit-purge",
			description: "Delete audit events older than a retention window",
			run:         runAuditPurge,
		},
		"profile-cache-clear": {
			name:        "profile-cache-clear",
			description: "Drop cached user profiles from Redis",
			run:         runProfileCacheClear,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: console-auth-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-24s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "maximum time to wait for migrations")
	fs.BoolVar(&opts.Status, "status", false, "list migrations and whether they are applied")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	if opts.Status {
		migrations, statusErr := migrate.Status(ctx, db)
		if statusErr != nil {
			return fmt.Errorf("migration status: %w", statusErr)
		}
		return printMigrationStatus(os.Stdout, migrations)
	}

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func printMigrationStatus(w io.Writer, migrations []migrate.Migration) error {
	tw := newTabWriter(w)
	if err := writef(tw, "VERSION\tAPPLIED AT\n"); err != nil {
		return err
	}
	for _, m := range migrations {
		applied := "pending"
		if m.Applied() {
			applied = m.AppliedAt.UTC().Format(time.RFC3339)
		}
		if err := writef(tw, "%s\t%s\n", m.Version, applied); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
