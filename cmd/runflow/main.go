package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mreicher/runflow/internal/config"
	"github.com/mreicher/runflow/internal/db"
	"github.com/mreicher/runflow/internal/history"
	"github.com/mreicher/runflow/internal/server"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	dialPublisher   func(url, queue string) (*history.AMQPPublisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, history.Publisher, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		dialPublisher:   history.DialPublisher,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	var pg *pgxpool.Pool
	if cfg.PostgresURL != "" {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			log.Printf("postgres connection failed, keeping history in memory: %v", err)
		}
	}

	rdb := deps.connectRedis(cfg)

	var pub history.Publisher
	if cfg.AMQPURL != "" {
		p, err := deps.dialPublisher(cfg.AMQPURL, history.DefaultQueue)
		if err != nil {
			log.Printf("amqp connection failed, saved runs will not be announced: %v", err)
		} else {
			pub = p
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, pub, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, pub history.Publisher, signals <-chan os.Signal, listen ListenFunc) error {
	var q db.Querier
	if pg != nil {
		if err := db.EnsureSchema(ctx, pg); err != nil {
			log.Printf("postgres schema unavailable, keeping history in memory: %v", err)
		} else {
			q = pg
		}
	}

	srv := server.NewServer(cfg, q, rdb, pub)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	srv.Start(runCtx)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancelRun()
			srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	cancelRun()
	srv.Close()
	if closer, ok := pub.(io.Closer); ok {
		_ = closer.Close()
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
