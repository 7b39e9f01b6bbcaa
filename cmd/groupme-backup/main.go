// ABOUTME: Entry point for groupme-backup
// ABOUTME: Mirrors one GroupMe group's message history into a local SQLite database

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/groupme-backup/internal/config"
	"github.com/2389/groupme-backup/internal/groupme"
	"github.com/2389/groupme-backup/internal/mirror"
	"github.com/2389/groupme-backup/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
  __ _ _ __ ___  _   _ _ __  _ __ ___   ___       | |__   __ _  ___| | ___   _ _ __
 / _' | '__/ _ \| | | | '_ \| '_ ' _ \ / _ \ _____| '_ \ / _' |/ __| |/ / | | | '_ \
| (_| | | | (_) | |_| | |_) | | | | | |  __/_____| |_) | (_| | (__|   <| |_| | |_) |
 \__, |_|  \___/ \__,_| .__/|_| |_| |_|\___|     |_.__/ \__,_|\___|_|\_\\__,_| .__/
 |___/                |_|                                                    |_|
`

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: groupme-backup [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  sync      Fetch new messages into the database (default)")
	fmt.Fprintln(w, "  backfill  Fetch messages older than the oldest stored message")
	fmt.Fprintln(w, "  status    Show schema version and row counts")
	fmt.Fprintln(w, "  migrate   Bring the database schema up to date")
	fmt.Fprintln(w, "  version   Print the version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration is read from DATABASE, GROUP_ID, TOKEN and friends,")
	fmt.Fprintf(w, "or from the YAML/TOML file named by %s.\n", config.ConfigEnvVar)
	fmt.Fprintln(w, "status and migrate only need DATABASE.")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := "sync"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "sync":
		return runSync(ctx, stdout, false)
	case "backfill":
		return runSync(ctx, stdout, true)
	case "status":
		return runStatus(ctx, stdout)
	case "migrate":
		return runMigrate(ctx, stdout)
	case "version":
		fmt.Fprintln(stdout, version)
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// setup loads configuration, builds the run's logger, and opens the store.
// The caller closes the store.
func setup(ctx context.Context, stdout io.Writer, req config.Requirement) (*config.Config, *slog.Logger, *store.SQLiteStore, error) {
	cfg, err := config.Load(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, stdout).With("run_id", uuid.NewString())

	st, err := store.Open(ctx, store.Options{
		Path:   cfg.Database.Path,
		Driver: cfg.Database.Driver,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, logger, st, nil
}

func runSync(ctx context.Context, stdout io.Writer, backfill bool) error {
	cfg, logger, st, err := setup(ctx, stdout, config.RequireAll)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Logging.Format == "color" {
		color.New(color.FgCyan).Fprint(stdout, banner)
		color.New(color.FgHiBlack).Fprintf(stdout, "    version: %s\n\n", version)
	}

	logger.Info("starting groupme-backup",
		"version", version,
		"database", cfg.Database.Path,
		"driver", cfg.Database.Driver,
		"group_id", cfg.GroupMe.GroupID,
		"backfill", backfill,
	)

	client := groupme.NewClient(cfg.GroupMe.APIURL, cfg.GroupMe.Token,
		groupme.WithLogger(logger),
		groupme.WithRateLimit(cfg.GroupMe.RequestsPerSecond),
	)
	syncer := mirror.New(st, client, cfg.GroupMe.GroupID, logger)

	var res *mirror.Result
	if backfill {
		res, err = syncer.Backfill(ctx)
	} else {
		res, err = syncer.Run(ctx)
	}
	if err != nil {
		return err
	}

	logger.Info("sync complete",
		"direction", res.Direction.String(),
		"pages", res.Pages,
		"seen", res.Seen,
		"stored", res.Stored,
		"skipped", res.Skipped,
		"unknown_attachments", res.Unknown,
	)
	return nil
}

func runStatus(ctx context.Context, stdout io.Writer) error {
	cfg, _, st, err := setup(ctx, stdout, config.RequireLocal)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	green.Fprint(stdout, "▶ ")
	fmt.Fprintf(stdout, "Database:  %s\n", cfg.Database.Path)
	green.Fprint(stdout, "▶ ")
	fmt.Fprintf(stdout, "Schema:    v%d ", stats.SchemaVersion)
	gray.Fprintf(stdout, "(latest v%d)\n", store.LatestVersion())
	green.Fprint(stdout, "▶ ")
	if stats.Tables["messages"] == 0 {
		fmt.Fprintln(stdout, "Messages:  none")
	} else {
		fmt.Fprintf(stdout, "Messages:  %d ", stats.Tables["messages"])
		gray.Fprintf(stdout, "(ids %d .. %d)\n", stats.FirstID, stats.LastID)
	}

	fmt.Fprintln(stdout)
	for _, table := range store.Tables {
		fmt.Fprintf(stdout, "  %-20s %d\n", table, stats.Tables[table])
	}
	return nil
}

func runMigrate(ctx context.Context, stdout io.Writer) error {
	_, logger, st, err := setup(ctx, stdout, config.RequireLocal)
	if err != nil {
		return err
	}
	defer st.Close()

	v, err := st.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("schema is up to date", "version", v)
	return nil
}
