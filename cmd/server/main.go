package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mfelder/liveline/internal/api"
	"github.com/mfelder/liveline/internal/channels"
	"github.com/mfelder/liveline/internal/config"
	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/messages"
	"github.com/mfelder/liveline/internal/notifications"
	"github.com/mfelder/liveline/internal/presence"
	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/session"
	"github.com/mfelder/liveline/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[liveline] ", log.LstdFlags)

	// a missing .env is fine, environment overrides are optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	for _, metric := range []string{
		stats.LiveConnections,
		stats.AuthenticatedSessions,
		stats.EventsDelivered,
		stats.MessagesSent,
	} {
		statsUpdater.RegisterMetric(metric)
	}
	statsUpdater.Run()
	defer statsUpdater.Stop()

	limiter, err := ratelimit.NewLimiter(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassDefault:  {Capacity: cfg.DefaultLimit.Capacity, RefillInterval: cfg.DefaultLimit.RefillInterval},
		ratelimit.ClassMessage:  {Capacity: cfg.MessageLimit.Capacity, RefillInterval: cfg.MessageLimit.RefillInterval},
		ratelimit.ClassExternal: {Capacity: cfg.ExternalLimit.Capacity, RefillInterval: cfg.ExternalLimit.RefillInterval},
	})
	if err != nil {
		logger.Fatal("rate limiter:", err)
	}

	registry := presence.NewRegistry(db, logger)
	messageStore := messages.NewStore(db, registry, limiter, logger)
	channelStore := channels.NewStore(db, registry, messageStore, logger)
	notificationDispatcher := notifications.NewDispatcher(db, registry, logger)

	dispatcher, err := session.NewDispatcher(session.Deps{
		Log:           logger,
		DB:            db,
		Presence:      registry,
		Limiter:       limiter,
		Channels:      channelStore,
		Messages:      messageStore,
		Notifications: notificationDispatcher,
		Stats:         statsUpdater,
		SigningKey:    cfg.SigningKey,
	})
	if err != nil {
		logger.Fatal("session dispatcher:", err)
	}

	srv := api.NewApp(mux, logger, dispatcher, db, limiter, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	dispatcher.Shutdown()

	logger.Println("shutdown complete")
}
