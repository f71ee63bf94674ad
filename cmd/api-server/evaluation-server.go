package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"evaluations/db"
	"evaluations/db/migrations"
	"evaluations/internal/config"
	"evaluations/internal/evaluation"
	"evaluations/internal/handlers"
	"evaluations/internal/logging"
)

func main() {
	conf, err := config.Load(viper.New(), ".", "/etc/evaluations")
	if err != nil {
		logging.Log.Fatalf("Cannot load config: %v", err)
	}
	logging.Bootstrap(conf.Log.Level)

	dbConn, err := sqlx.Connect("postgres", conf.Database.URL)
	if err != nil {
		logging.Log.Fatalf("Cannot connect to DB: %v", err)
	}
	defer dbConn.Close()

	if conf.Database.MigrationsEnabled {
		if err := migrations.Run(dbConn.DB); err != nil {
			logging.Log.Fatalf("Migrations failed: %v", err)
		}
		if version, err := migrations.Version(dbConn.DB); err == nil {
			logging.Log.Infof("Database schema version %d", version)
		}
	}

	store := db.NewStorage(dbConn)
	engine, err := evaluation.NewEngine(store, store, conf.Evaluation)
	if err != nil {
		logging.Log.Fatalf("Cannot build evaluation engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if conf.Sentiment.Enabled {
		queue := evaluation.NewSentimentQueue(evaluation.NeutralAnalyzer{}, store, evaluation.SentimentOptions{
			Workers:    conf.Sentiment.Workers,
			QueueSize:  conf.Sentiment.QueueSize,
			MaxRetries: conf.Sentiment.MaxRetries,
			Backoff:    conf.Sentiment.Backoff,
		})
		engine.Bus.OnResponseTextSaved(queue.Enqueue)
		g.Go(func() error { return queue.Run(ctx) })
	}

	server := &http.Server{
		Addr:              conf.Server.Address,
		Handler:           handlers.NewRouter(handlers.NewHandler(engine)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logging.Log.Infof("Starting server on %s", conf.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Log.Errorf("Server stopped: %v", err)
		return
	}
	logging.Log.Info("Server closed")
}
