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

	"github.com/rs/zerolog"

	"simplepos/internal/cache"
	"simplepos/internal/catalog"
	"simplepos/internal/config"
	"simplepos/internal/httpapi"
	"simplepos/internal/intake"
	"simplepos/internal/intake/browser"
	"simplepos/internal/logger"
	"simplepos/internal/service"
	"simplepos/internal/store"
	"simplepos/internal/store/memory"
	"simplepos/internal/store/sqlstore"
	"simplepos/internal/submitqueue"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	policy, err := submitqueue.ParsePolicy(cfg.SubmitRemovalPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SUBMIT_REMOVAL_POLICY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	feedCache := cache.FeedCache(cache.NoopFeedCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisFeedCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, feed cache disabled")
		} else {
			feedCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("feed cache: redis")
		}
	}

	sinks, err := buildIntake(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("intake unavailable")
	}
	closers = append(closers, sinks.closers...)

	stores := httpapi.DefaultStores()
	if cfg.StoresFile != "" {
		stores, err = httpapi.LoadStores(cfg.StoresFile)
		if err != nil {
			log.Fatal().Err(err).Msg("load stores")
		}
	}
	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, stores)
	if err != nil {
		log.Fatal().Err(err).Msg("prepare store table")
	}

	loader := catalog.NewLoader(cfg.CatalogURL, time.Duration(cfg.CatalogTimeoutSeconds)*time.Second,
		catalog.WithFeedCache(feedCache, time.Duration(cfg.FeedCacheTTLSeconds)*time.Second),
		catalog.WithLogger(log.With().Str("component", "catalog").Logger()),
	)
	svc := service.New(service.Options{
		Catalog:           loader,
		SaleSink:          sinks.sale,
		AdjustmentSink:    sinks.adjustment,
		SaleFormURL:       cfg.SaleFormURL,
		AdjustmentFormURL: cfg.AdjustmentFormURL,
		RemovalPolicy:     policy,
		Log:               log,
	})

	var apiOpts []httpapi.Option
	if sinks.repo != nil {
		apiOpts = append(apiOpts, httpapi.WithSubmissionStore(sinks.repo))
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log, apiOpts...)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// submit drains post one form at a time
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepSessions(sweepCtx, svc, log)

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("simplepos listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if sinks.detached != nil {
		sinks.detached.Wait()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

type intakeSinks struct {
	sale       intake.Sink
	adjustment intake.Sink
	repo       store.Repository
	detached   *intake.DetachedSink
	closers    []func() error
}

// buildIntake picks where sale and adjustment forms go. The form driver
// posts to the hosted forms; memory, pgx and sqlite3 record them locally.
func buildIntake(ctx context.Context, cfg config.Config, log zerolog.Logger) (intakeSinks, error) {
	submitTimeout := time.Duration(cfg.SubmitTimeoutSeconds) * time.Second

	switch cfg.IntakeDriver {
	case "", "form":
		primary := intake.NewHTTPSink(submitTimeout, log)
		out := intakeSinks{sale: primary}

		if cfg.FallbackBrowser {
			formSink := browser.New(cfg.BrowserBin, log)
			out.adjustment = intake.NewFallbackSink(primary, formSink, log)
			out.closers = append(out.closers, formSink.Close)
			log.Info().Msg("intake: forms, browser fallback for adjustments")
		} else {
			out.detached = intake.NewDetachedSink(primary, submitTimeout, log)
			out.adjustment = intake.NewFallbackSink(primary, out.detached, log)
			log.Info().Msg("intake: forms, detached fallback for adjustments")
		}
		return out, nil

	case "memory":
		repo := memory.New()
		sink := intake.NewRecordSink(repo)
		log.Info().Msg("intake: in-memory")
		return intakeSinks{sale: sink, adjustment: sink, repo: repo}, nil

	case sqlstore.DriverPostgres, sqlstore.DriverSQLite:
		if cfg.IntakeDSN == "" {
			return intakeSinks{}, fmt.Errorf("INTAKE_DSN is required for intake driver %s", cfg.IntakeDriver)
		}
		repo, err := sqlstore.New(ctx, cfg.IntakeDriver, cfg.IntakeDSN)
		if err != nil {
			return intakeSinks{}, err
		}
		sink := intake.NewRecordSink(repo)
		log.Info().Str("driver", cfg.IntakeDriver).Msg("intake: sql")
		return intakeSinks{sale: sink, adjustment: sink, repo: repo, closers: []func() error{repo.Close}}, nil

	default:
		return intakeSinks{}, fmt.Errorf("unknown INTAKE_DRIVER %q", cfg.IntakeDriver)
	}
}

func sweepSessions(ctx context.Context, svc *service.Service, log zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.Sessions().Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired sessions swept")
			}
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AppEnv == "production" && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be * in production")
	}
	return nil
}
