package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/claude/stravasummary/internal/activity"
	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/config"
	"github.com/claude/stravasummary/internal/daterange"
	"github.com/claude/stravasummary/internal/export"
	"github.com/claude/stravasummary/internal/models"
	"github.com/claude/stravasummary/internal/store"
	"github.com/claude/stravasummary/internal/strava"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const defaultConfigPath = "config.yaml"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (default config.yaml when present)")
	outDir := flag.String("out", "", "directory for the JSON export (overrides output.dir)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	history := flag.Int("history", 0, "print the last N export runs and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println("stravasummary", Version)
		return exitOK
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -log-level %q\n", *logLevel)
		return exitUsage
	}
	// Reports go to stdout; keep logs off it.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("failed to read .env", "error", err)
		return exitUsage
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("failed to load config", "path", path, "error", err)
		return exitUsage
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		return printHistory(ctx, cfg, *history, log)
	}

	// Dates are checked before anything touches the network.
	started := time.Now()
	rng, err := daterange.Resolve(flag.Args(), started)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		return exitUsage
	}

	backend, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("failed to open credential store", "driver", cfg.Store.Driver, "error", err)
		return exitError
	}
	defer backend.Close()

	stored, err := backend.Load(ctx)
	if err != nil && !errors.Is(err, auth.ErrNoCredential) {
		log.Error("failed to load stored credential", "error", err)
		return exitError
	}
	cred := auth.Pick(stored, seedCredential(cfg.Credentials))
	if cred.RefreshToken == "" {
		log.Error("no refresh token available",
			"error", fmt.Errorf("%w: set REFRESH_TOKEN or credentials.refresh_token", config.ErrConfig))
		return exitUsage
	}

	runID := uuid.New()
	log = log.With("run_id", runID.String())
	log.Info("exporting activities", "period", rng.Label(), "version", Version)

	tokens := auth.NewManager(cred, backend, auth.Options{
		TokenURL: cfg.API.TokenURL,
		Margin:   cfg.Auth.RefreshMargin,
	}, log)
	if _, err := tokens.EnsureValid(ctx); err != nil {
		log.Error("could not obtain a valid access token", "error", err)
		recordRun(backend, runID, started, rng, nil, "", err, log)
		return exitError
	}
	log.Info("access token ready", "state", tokens.State())

	client := strava.NewClient(cfg.API.BaseURL, tokens, strava.Options{
		Timeout:           cfg.API.Timeout,
		PerPage:           cfg.API.PerPage,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
	res, err := activity.New(client, time.Now, log).Run(ctx, rng)
	if err != nil {
		log.Error("export failed", "error", err)
		recordRun(backend, runID, started, rng, nil, "", err, log)
		return exitError
	}

	printReports(res.Reports)
	log.Info("processed activities",
		"listed", res.Stats.Listed,
		"runs", res.Stats.Runs,
		"workouts", res.Stats.Workouts,
		"skipped", res.Stats.Skipped,
		"failed", res.Stats.Failed)
	if res.Stats.Failed > 0 {
		log.Warn("some activities were excluded from the export", "activity_ids", res.Stats.FailedIDs)
	}

	outPath, size, err := export.Write(cfg.Output.Dir, rng.FileName(), res.Payload)
	if err != nil {
		log.Error("failed to write export", "error", err)
		recordRun(backend, runID, started, rng, res, "", err, log)
		return exitError
	}
	log.Info("export written", "path", outPath, "size", humanize.Bytes(uint64(size)),
		"activities", res.Payload.TotalActivities)

	recordRun(backend, runID, started, rng, res, outPath, nil, log)
	return exitOK
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stravasummary [flags] [START_DATE [END_DATE]]\n\n")
	fmt.Fprintf(os.Stderr, "  no dates    the current week, Monday through today\n")
	fmt.Fprintf(os.Stderr, "  START_DATE  from START_DATE through today\n")
	fmt.Fprintf(os.Stderr, "  both        from START_DATE through END_DATE, inclusive\n")
	fmt.Fprintf(os.Stderr, "Dates use the format %s.\n\n", daterange.DateLayout)
	flag.PrintDefaults()
}

func seedCredential(c config.CredentialsConfig) models.Credential {
	return models.Credential{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		TokenType:    c.TokenType,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

func printReports(reports []string) {
	if len(reports) == 0 {
		fmt.Println("No runs or workouts in this period.")
		return
	}
	fmt.Println(strings.Join(reports, "\n---\n\n"))
}

// recordRun appends the run to the history. A failure here is logged and
// does not change the exit code.
func recordRun(backend store.Backend, id uuid.UUID, started time.Time, rng daterange.Range,
	res *activity.Result, outPath string, runErr error, log *slog.Logger) {
	r := store.Run{
		ID:         id,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Period:     rng.Label(),
		Status:     store.RunSuccess,
		ExportPath: outPath,
	}
	if res != nil {
		r.Listed = res.Stats.Listed
		r.Exported = res.Payload.TotalActivities
		r.Skipped = res.Stats.Skipped
		r.Failed = res.Stats.Failed
	}
	if runErr != nil {
		msg := runErr.Error()
		r.Status = store.RunError
		r.ErrorMessage = &msg
	}
	// The signal context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.RecordRun(ctx, r); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}

func printHistory(ctx context.Context, cfg *config.Config, limit int, log *slog.Logger) int {
	backend, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		return exitError
	}
	defer backend.Close()

	runs, err := backend.RecentRuns(ctx, limit)
	if err != nil {
		log.Error("failed to read run history", "error", err)
		return exitError
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return exitOK
	}
	for _, r := range runs {
		fmt.Printf("%s  %-7s  %-24s  exported %d, skipped %d, failed %d  (%s)\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			r.Period,
			r.Exported, r.Skipped, r.Failed,
			humanize.Time(r.StartedAt))
		if r.ErrorMessage != nil {
			fmt.Printf("    error: %s\n", *r.ErrorMessage)
		} else if r.ExportPath != "" {
			fmt.Printf("    %s\n", r.ExportPath)
		}
	}
	return exitOK
}
