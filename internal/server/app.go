// Package server wires the application together: config, logging, database,
// migrations, services and the HTTP server, with graceful shutdown on
// SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"contactbook/internal/logging"
	"contactbook/internal/server/config"
	"contactbook/internal/server/httpapi"
	"contactbook/internal/server/mailer"
	"contactbook/internal/server/repositories/repomanager"
	"contactbook/internal/server/services"
)

// Rate limit for the contact listing endpoint.
const (
	listRateLimit  = 10
	listRateWindow = time.Minute
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := httpapi.NewRedisLimiter(redisClient, listRateLimit, listRateWindow)

	mail := mailer.NewMailtrapClient(cfg.MailAPIToken, cfg.MailFrom)
	avatars := services.NewAvatarStore(cfg)

	userService := services.NewUserService(db, rm, mail, avatars, logger, cfg)
	contactService := services.NewContactService(db, rm)

	srv := httpapi.NewServer(cfg.EndpointAddr, logger, userService, contactService, limiter)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}
