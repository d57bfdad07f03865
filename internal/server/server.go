package server

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/mreicher/runflow/internal/clock"
	"github.com/mreicher/runflow/internal/config"
	"github.com/mreicher/runflow/internal/db"
	"github.com/mreicher/runflow/internal/export"
	"github.com/mreicher/runflow/internal/history"
	"github.com/mreicher/runflow/internal/identity"
	"github.com/mreicher/runflow/internal/location"
	"github.com/mreicher/runflow/internal/stream"
	"github.com/mreicher/runflow/internal/tracker"
)

// anonymousRunner is the stream topic used while nobody is signed in.
const anonymousRunner = "anonymous"

var newClock = func() clock.Clock { return clock.NewTicker() }

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       db.Querier
	Redis    *redis.Client
	Stream   *stream.Hub
	Engine   *tracker.Engine
	Identity *identity.Provider
	History  *history.Service

	samples   *location.Source
	redisFeed *location.RedisFeed
	runner    atomic.Value
	unsubs    []func()
}

type streamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewServer wires the engine and its collaborators. q, redisClient and pub
// may each be nil: history then stays in memory, the location feed and
// stream stay in-process, and saved runs are not announced.
func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client, pub history.Publisher) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       q,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Identity: identity.NewProvider(cfg.JWTSecret),
	}
	s.runner.Store(anonymousRunner)

	var store history.Store = history.NewMemoryStore()
	if q != nil {
		store = history.NewPostgresStore(q)
	}
	s.History = history.NewService(store, pub)

	var feed location.Feed
	if redisClient != nil {
		s.redisFeed = location.NewRedisFeed(redisClient, cfg.LocationChannel)
		s.samples = s.redisFeed.Source
		feed = s.redisFeed
	} else {
		s.samples = location.NewSource()
		feed = s.samples
	}

	opts := []tracker.Option{tracker.WithCompletion(s.onRunCompleted)}
	if cfg.ProbeTimeoutSec > 0 {
		opts = append(opts, tracker.WithProbeTimeout(time.Duration(cfg.ProbeTimeoutSec)*time.Second))
	}
	s.Engine = tracker.New(newClock(), feed, opts...)

	s.unsubs = append(s.unsubs,
		s.Engine.Subscribe(s.onSnapshot),
		s.Identity.Subscribe(s.onIdentityChanged),
	)

	registerRoutes(s)
	return s
}

// Start runs background loops until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	if s.redisFeed == nil {
		return
	}
	go func() {
		if err := s.redisFeed.Run(ctx, nil); err != nil {
			log.Printf("server: location feed stopped: %v", err)
		}
	}()
}

// Close detaches observers, ends any run in progress and stops the stream.
func (s *Server) Close() {
	for _, unsubscribe := range s.unsubs {
		unsubscribe()
	}
	s.Engine.Reset()
	s.Stream.Close()
}

func (s *Server) runnerID() string {
	return s.runner.Load().(string)
}

func (s *Server) onSnapshot(snap tracker.Snapshot) {
	s.broadcast(s.topicFor(snap.RunnerID), "snapshot", snap)
}

// onRunCompleted files the run under the runner who started it, which may
// differ from whoever is signed in now.
func (s *Server) onRunCompleted(run tracker.Run) {
	s.History.Complete(run.RunnerID, run)
	s.broadcast(s.topicFor(run.RunnerID), "run_completed", run)
}

func (s *Server) topicFor(runnerID string) string {
	if runnerID != "" {
		return runnerID
	}
	return s.runnerID()
}

// onIdentityChanged follows the signed-in user. Signing out or switching
// user abandons the current attempt.
func (s *Server) onIdentityChanged(user *identity.User) {
	next := anonymousRunner
	if user != nil {
		next = user.ID
	}
	prev := s.runner.Swap(next).(string)
	if prev != anonymousRunner && prev != next {
		s.Engine.Reset()
	}
}

func (s *Server) broadcast(topic, kind string, data any) {
	payload, err := json.Marshal(streamEvent{Type: kind, Data: data})
	if err != nil {
		log.Printf("server: encode %s event: %v", kind, err)
		return
	}
	s.Stream.Broadcast(topic, payload)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		snap := s.Engine.Snapshot()
		return c.JSON(fiber.Map{"status": "ok", "location_ready": snap.Ready, "degraded": snap.Degraded})
	})

	authMiddleware := identity.Middleware(s.Identity)

	identity.RegisterRoutes(s.App.Group("/auth"), s.Identity)
	trackerRoutes := s.App.Group("/tracker")
	tracker.RegisterRoutes(trackerRoutes, s.Engine, s.samples, authMiddleware)
	trackerRoutes.Get("/splits.csv", authMiddleware, export.SplitsDownload(func(*fiber.Ctx) ([]tracker.Split, error) {
		return s.Engine.Snapshot().Splits, nil
	}))
	history.RegisterRoutes(s.App.Group("/runs"), s.History, authMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
