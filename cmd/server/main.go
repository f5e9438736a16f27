package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/movierec/internal/config"
	httpserver "github.com/Clark-Hu/movierec/internal/http"
	"github.com/Clark-Hu/movierec/internal/letterboxd"
	"github.com/Clark-Hu/movierec/internal/mf"
	"github.com/Clark-Hu/movierec/internal/recommend"
	"github.com/Clark-Hu/movierec/internal/repository"
	"github.com/Clark-Hu/movierec/internal/scraper"
	"github.com/Clark-Hu/movierec/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[movierec] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	repo := repository.New(st)
	fetcher := letterboxd.NewHTTPFetcher(int64(cfg.FetchConcurrency), time.Duration(cfg.FetchTimeoutSecs)*time.Second, logger)
	enricher := scraper.NewEnricher(fetcher, cfg.LetterboxdBaseURL, logger)
	scrapes := scraper.New(fetcher, cfg.LetterboxdBaseURL, repo.Movies, repo.Ratings, repo, enricher, logger)
	trainer := mf.NewTrainer(mf.DefaultOptions(), logger)
	engine := recommend.NewEngine(repo.Ratings, repo.Movies, scrapes, trainer, logger)

	server := httpserver.New(cfg, st, repo, scrapes, engine, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
