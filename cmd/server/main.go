package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/iliyamo/vacation-rental-marketplace/internal/config"
	"github.com/iliyamo/vacation-rental-marketplace/internal/database"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/queue"
	"github.com/iliyamo/vacation-rental-marketplace/internal/repository"
	"github.com/iliyamo/vacation-rental-marketplace/internal/router"
	"github.com/iliyamo/vacation-rental-marketplace/internal/service"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage/memory"
)

func main() {
	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	log.Info("starting rental marketplace",
		slog.String("env", cfg.Env),
		slog.String("storage_mode", cfg.StorageMode))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fallback, err := memory.NewSeeded()
	if err != nil {
		log.Error("failed to seed fallback store", sl.Err(err))
		os.Exit(1)
	}

	var (
		primary storage.Storage
		db      *sql.DB
	)
	if cfg.StorageMode == config.StorageMySQL {
		db, err = database.Open(ctx, database.Options{
			User:     cfg.DB.User,
			Password: cfg.DB.Pass,
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Name:     cfg.DB.Name,
		})
		if err != nil {
			log.Error("failed to connect to mysql", sl.Err(err))
			os.Exit(1)
		}
		if cfg.DB.Migrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Error("failed to migrate schema", sl.Err(err))
				os.Exit(1)
			}
		}
		primary = repository.New(db)
	}
	store := storage.NewSwitch(primary, fallback, log)

	var events service.EventPublisher = service.NopPublisher{}
	var workers sync.WaitGroup
	if cfg.RabbitMQ.Enabled {
		pub := service.NewAMQPPublisher(cfg.RabbitMQ.URL, log)
		defer pub.Close()
		events = pub

		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, store, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking event consumer stopped", sl.Err(err))
			}
		}()
	}

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := router.New(router.Deps{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Bookings: service.NewBookingService(store, events, log),
		Redis:    rdb,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      e,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("application stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", sl.Err(err))
	}
	workers.Wait()

	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("failed to close mysql connection", sl.Err(err))
		}
	}
	log.Info("application stopped", slog.String("storage", store.Mode()))
}
