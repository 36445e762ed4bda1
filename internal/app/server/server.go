package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"promo-scheduler/internal/api"
	"promo-scheduler/internal/config"
	"promo-scheduler/internal/fetcher"
	"promo-scheduler/internal/refresher"
	"promo-scheduler/internal/scheduler"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	st := openStores(rootCtx, cfg)
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	// Scheduler
	sched, err := newScheduler(cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler config")
	}

	// Configuration refresh
	var ref *refresher.Refresher
	if f := newFetcher(cfg); f != nil {
		ref = refresher.New(f, sched)
		go ref.Run(rootCtx, cfg.RefreshInterval(), cfg.Backoff())
		if st.pool != nil && cfg.Listener.Channel != "" {
			go refresher.ListenAndRefresh(rootCtx, st.pool, cfg.Listener.Channel, ref, cfg.Backoff())
		}
	} else {
		log.Warn().Msg("no fetcher url or file configured; catalog stays empty")
	}

	// HTTP
	var rf api.Refresher
	if ref != nil {
		rf = ref
	}
	h := api.NewPromotionHandler(sched, rf)
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

// newScheduler builds the scheduler over st, seeded with the reset
// bookkeeping restored alongside the counters.
func newScheduler(cfg config.Config, st *stores) (*scheduler.Scheduler, error) {
	policy, err := scheduler.ParseResetPolicy(cfg.Scheduler.ResetPolicy)
	if err != nil {
		return nil, err
	}
	return scheduler.New(st.balancing, st.cumulative,
		scheduler.WithLanguage(cfg.Scheduler.Language),
		scheduler.WithPlatform(cfg.Scheduler.Platform),
		scheduler.WithResetPolicy(policy),
		scheduler.WithResetState(st.resetState),
		scheduler.WithStateStore(st.state),
	), nil
}

// newFetcher prefers the remote URL over the bundled file.
func newFetcher(cfg config.Config) fetcher.ConfigFetcher {
	switch {
	case cfg.Fetcher.URL != "":
		return fetcher.NewHTTPFetcher(cfg.Fetcher.URL, cfg.Fetcher.SchemaVersion, cfg.FetchTimeout())
	case cfg.Fetcher.File != "":
		return fetcher.NewFileFetcher(cfg.Fetcher.File, cfg.Fetcher.SchemaVersion)
	default:
		return nil
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
