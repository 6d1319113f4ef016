package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ventasbi/internal/auditor"
	"ventasbi/internal/config"
	"ventasbi/internal/extract"
	"ventasbi/internal/infra"
	"ventasbi/internal/pipeline"
	"ventasbi/internal/writer"
)

// Exit codes let the scheduler distinguish "fix the data" from "try later".
const (
	exitOK       = 0
	exitFailure  = 1
	exitMismatch = 2
	exitLocked   = 3
)

// releaser is the slice of infra.RunLock that run needs to give the lease
// back. os.Exit skips deferred functions, so every exit path must flow
// through run's return value instead of exiting directly — otherwise a
// failed run would keep the destination locked until TTL expiry.
type releaser interface {
	Release(ctx context.Context) error
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// Serialize runs against the destination when Redis is available. A
	// crashed run releases the lease by TTL expiry.
	var lock releaser
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		runLock := infra.NewRunLock(rdb, cfg.OutputDir, 30*time.Minute)
		if err := runLock.Acquire(ctx); err != nil {
			if errors.Is(err, infra.ErrLockHeld) {
				log.Error().Msg("otra corrida en curso sobre el mismo destino")
				os.Exit(exitLocked)
			}
			log.Fatal().Err(err).Msg("failed to acquire run lock")
		}
		lock = runLock
	}

	os.Exit(run(ctx, cfg, lock))
}

// run executes one batch run and returns the process exit code. The lock, if
// any, is released on every path before the code is returned to main.
func run(ctx context.Context, cfg *config.Config, lock releaser) int {
	if lock != nil {
		defer func() {
			if err := lock.Release(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to release run lock")
			}
		}()
	}

	ds, err := extractDataset(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("extraccion fallida")
		return exitFailure
	}

	var alerter pipeline.Alerter
	if cfg.SMTPConfigured() {
		alerter = infra.NewMailer(cfg)
	}

	runner := pipeline.NewRunner(cfg, writer.New(), alerter)
	res, err := runner.Run(ctx, ds)
	if err != nil {
		var mismatch *auditor.MismatchError
		if errors.As(err, &mismatch) {
			return exitMismatch
		}
		log.Error().Err(err).Msg("corrida fallida")
		return exitFailure
	}

	log.Info().
		Stringer("run_id", res.RunID).
		Int("hechos", len(res.Tables.Facts)).
		Msg("corrida publicada")
	return exitOK
}

// extractDataset picks the source: the POS database when DATABASE_URL is set,
// the raw CSV drop directory otherwise.
func extractDataset(ctx context.Context, cfg *config.Config) (*extract.Dataset, error) {
	if cfg.DatabaseURL == "" {
		return extract.NewCSVExtractor(cfg.RawDir).Extract(ctx)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	from, to := periodRange(cfg.ReportingPeriod)
	return extract.NewPostgresExtractor(db, "", from, to).Extract(ctx)
}

// periodRange maps a YYYY-MM reporting period onto [first of month, first of
// next month). An empty or malformed period falls back to the current month.
func periodRange(period string) (time.Time, time.Time) {
	month, err := time.Parse("2006-01", period)
	if err != nil {
		now := time.Now().UTC()
		month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return month, month.AddDate(0, 1, 0)
}
