/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workforce billing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, env, .env, optional file)
  2. Build the zap logger
  3. Open the SQLite store
  4. Build the holiday calendar (day-off API behind a cache, or static)
  5. Build the event publisher (Kafka or no-op)
  6. Wire services and HTTP handler, seed the admin account
  7. Start the calendar refresher and the HTTP server

COMMAND-LINE FLAGS:
  --port    HTTP server port (default: 8080)
  --db      SQLite database path (default: workforce.db)
            Use ":memory:" for in-memory database
  --config  Optional config file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher, close the publisher and the database
  4. Exit

SEE ALSO:
  - config/config.go: Keys and environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/api"
	"github.com/warp/workforce-billing/auth"
	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/company"
	"github.com/warp/workforce-billing/config"
	"github.com/warp/workforce-billing/events/kafka"
	"github.com/warp/workforce-billing/logger"
	"github.com/warp/workforce-billing/schedule"
	"github.com/warp/workforce-billing/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "server: %+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	defer log.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer store.Close()

	// Holiday calendar
	var holidays calendar.Provider
	var refresher *calendar.Refresher
	if cfg.Calendar.BaseURL == "" {
		log.Warnw("calendar.base_url is empty, running without public holidays")
		holidays = calendar.NewStatic()
	} else {
		client := calendar.NewDayOffClient(calendar.DayOffConfig{
			BaseURL:  cfg.Calendar.BaseURL,
			Timeout:  cfg.Calendar.Timeout,
			RetryMax: cfg.Calendar.RetryMax,
			Logger:   log.RetryableHTTPLogger(),
		})
		cached := calendar.NewCachedProvider(client, cfg.Calendar.CacheTTL)
		refresher = calendar.NewRefresher(cached, log)
		if cfg.Calendar.RefreshInterval > 0 {
			refresher.Interval = cfg.Calendar.RefreshInterval
		}
		holidays = cached
	}

	// Events
	var publisher billing.Publisher = billing.NopPublisher{}
	if cfg.Kafka.Enabled {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
		log.Infow("publishing ledger events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// Services
	engine := schedule.NewEngine(store, holidays, publisher, log, cfg.ScheduleConfig())
	companies := company.NewService(store, publisher, log)
	accounts := auth.NewService(store, auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL), companies, log)
	accounts.InvitationLimit = company.DefaultInvitationLimit

	if err := accounts.SeedAdmin(context.Background(), cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	handler := api.NewHandler(accounts, engine, companies, log)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins})

	if refresher != nil {
		refresher.Start()
		defer refresher.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"port", cfg.Server.Port,
			"db", cfg.Database.Path,
			"day_rate", engine.Config().DayRate.String(),
			"deletion_mode", string(engine.Config().DeletionMode),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
	case <-quit:
	}

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	log.Infow("server stopped")
	return nil
}
