// main.go
//
// Entry point of the daily puzzle engine.
//
// Subcommands:
//   - serve (default): HTTP API; migrates and seeds the catalog on startup.
//   - migrate [up|down]: apply or roll back the schema.
//   - seed: load the catalog (CATALOG_FILE or the embedded default) into the store.
//   - cron: run the external trigger on CRON_SCHEDULE against TRIGGER_URL.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/catalog"
	"github.com/robalobadob/dailypuzzle/internal/config"
	"github.com/robalobadob/dailypuzzle/internal/daily"
	"github.com/robalobadob/dailypuzzle/internal/database"
	"github.com/robalobadob/dailypuzzle/internal/httpserver"
	"github.com/robalobadob/dailypuzzle/internal/leaderboard"
	"github.com/robalobadob/dailypuzzle/internal/metrics"
	"github.com/robalobadob/dailypuzzle/internal/session"
	"github.com/robalobadob/dailypuzzle/internal/store"
	"github.com/robalobadob/dailypuzzle/internal/store/sqlstore"
	"github.com/robalobadob/dailypuzzle/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "migrate":
		dir := "up"
		if len(os.Args) > 2 {
			dir = os.Args[2]
		}
		err = runMigrate(cfg, dir)
	case "seed":
		err = seed(ctx, cfg)
	case "cron":
		err = runCron(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [serve|migrate [up|down]|seed|cron]\n", os.Args[0])
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("cmd", cmd).Msg("exited with error")
	}
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openStore selects the storage backend. SQL backends are migrated on open.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == "memory" {
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return store.NewMemoryStore(), nil
	}
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, cfg.DBDriver), nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, st store.CandidateRepository) error {
	cs, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	return catalog.Seed(ctx, st, cs)
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := loadCatalog(ctx, cfg, st); err != nil {
		return err
	}

	cal, err := daily.NewCalendar(cfg.Timezone)
	if err != nil {
		return err
	}
	if cfg.CronSecret == "" {
		log.Warn().Msg("CRON_SECRET is not set; the trigger endpoint will refuse every call")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	gen := daily.NewGenerator(st, st, daily.Options{
		Calendar: cal,
		Salt:     cfg.DailySalt,
		Filters:  cfg.PoolFilters(),
		Recorder: m,
	})

	var cache leaderboard.Cache
	if cfg.RedisURL != "" {
		rdb, err := leaderboard.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; leaderboard reads fall back to the store")
		}
		cache = leaderboard.NewRedisCache(rdb, cfg.LeaderboardCacheTTL)
	}
	board := leaderboard.NewAggregator(st, cache, m)

	svc := session.NewService(st, gen, session.Options{
		Hints:       cfg.Hints(),
		Leaderboard: board,
		Recorder:    m,
	})

	srv := httpserver.New(httpserver.Deps{
		Sessions:     svc,
		Scheduler:    gen,
		Leaderboards: board,
		Candidates:   st,
		Recorder:     m,
		Metrics:      metrics.Handler(reg),
	}, httpserver.Options{
		JWTSecret:        cfg.JWTSecret,
		CookieName:       cfg.CookieName,
		CronSecret:       cfg.CronSecret,
		ClientOrigin:     cfg.ClientOrigin,
		RequestTimeout:   cfg.RequestTimeout,
		GuessesPerMinute: cfg.RateLimitGuessesPerMinute,
	})
	defer srv.Close()

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("driver", cfg.DBDriver).Str("timezone", cal.Location().String()).Msg("starting dailypuzzle")
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

func runMigrate(cfg *config.Config, dir string) error {
	if cfg.DBDriver == "memory" {
		return errors.New("migrate: the memory driver has no schema")
	}
	switch dir {
	case "up":
		st, err := openStore(context.Background(), cfg)
		if err != nil {
			return err
		}
		return st.Close()
	case "down":
		m, err := database.NewMigrator(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info().Msg("migrations rolled back")
		return nil
	default:
		return fmt.Errorf("migrate: unknown direction %q", dir)
	}
}

func seed(ctx context.Context, cfg *config.Config) error {
	if cfg.DBDriver == "memory" {
		return errors.New("seed: the memory driver is seeded by serve")
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return loadCatalog(ctx, cfg, st)
}

func runCron(ctx context.Context, cfg *config.Config) error {
	if cfg.CronSecret == "" {
		return errors.New("cron: CRON_SECRET is required")
	}
	cal, err := daily.NewCalendar(cfg.Timezone)
	if err != nil {
		return err
	}
	c := trigger.NewClient(cfg.TriggerURL, cfg.CronSecret, nil)
	return trigger.Run(ctx, c, cfg.CronSchedule, cal.Location())
}
