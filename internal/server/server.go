package server

import (
	"context"

	"backend-trailtrace/internal/activity"
	"backend-trailtrace/internal/auth"
	"backend-trailtrace/internal/config"
	"backend-trailtrace/internal/motion"
	"backend-trailtrace/internal/session"
	"backend-trailtrace/internal/stream"
	"backend-trailtrace/internal/syncer"
	"backend-trailtrace/internal/track"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Sync   *syncer.Queue
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	authSvc := auth.NewService(cfg.JWTSecret, db)
	s.Sync = newSyncQueue(cfg, authSvc, redisClient)

	registerRoutes(s, authSvc)
	return s
}

func newSyncQueue(cfg config.Config, authSvc *auth.Service, redisClient *redis.Client) *syncer.Queue {
	queueCfg := syncer.DefaultConfig()
	if cfg.SyncMaxRetries > 0 {
		queueCfg.MaxRetries = cfg.SyncMaxRetries
	}
	if cfg.SyncBaseDelay > 0 {
		queueCfg.BaseDelay = cfg.SyncBaseDelay
	}
	if cfg.SyncFlushInterval > 0 {
		queueCfg.FlushInterval = cfg.SyncFlushInterval
	}

	var store syncer.Store
	if redisClient != nil {
		store = syncer.NewRedisStore(redisClient)
	}
	return syncer.NewQueue(queueCfg, syncer.NewClient(cfg.SyncEndpoint), auth.NewSyncTokenSource(authSvc), store)
}

func trackConfig(cfg config.Config) track.Config {
	trackCfg := track.DefaultConfig()
	if cfg.TrackAccuracyCeilingM > 0 {
		trackCfg.AccuracyCeilingM = cfg.TrackAccuracyCeilingM
	}
	if cfg.TrackSpeedCeilingMps > 0 {
		trackCfg.SpeedCeilingMps = cfg.TrackSpeedCeilingMps
	}
	if cfg.TrackSimplifyTolM > 0 {
		trackCfg.SimplifyToleranceM = cfg.TrackSimplifyTolM
	}
	if cfg.TrackElevationThreshM > 0 {
		trackCfg.ElevationThresholdM = cfg.TrackElevationThreshM
	}
	trackCfg.Interpolate = cfg.TrackInterpolate
	return trackCfg
}

func gateConfig(cfg config.Config) motion.Config {
	gateCfg := motion.DefaultConfig()
	if cfg.AutoPauseSpeedMps > 0 {
		gateCfg.SpeedThresholdMps = cfg.AutoPauseSpeedMps
	}
	if cfg.AutoPauseAfter > 0 {
		gateCfg.TimeThreshold = cfg.AutoPauseAfter
	}
	return gateCfg
}

func registerRoutes(s *Server, authSvc *auth.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	activitySvc := activity.NewService(s.DB, s.Sync)
	sessionSvc := session.NewService(s.DB, s.Stream, activitySvc, trackConfig(s.Cfg), gateConfig(s.Cfg))

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	session.RegisterRoutes(s.App.Group("/track"), sessionSvc, jwtMiddleware)
	activity.RegisterRoutes(s.App.Group("/activities"), activitySvc, jwtMiddleware)
	syncer.RegisterRoutes(s.App.Group("/sync"), s.Sync, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)

	// Sync state changes fan out on the pseudo-session "sync" channel.
	s.Sync.Subscribe(func(status syncer.Status) {
		s.Stream.Publish("sync", stream.EventStatus, status)
	})
}

// Start restores the persisted sync queue and launches its flush loop.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Sync.Restore(ctx); err != nil {
		return err
	}
	s.Sync.SetOnline(ctx, true)
	s.Sync.Start()
	return nil
}

func (s *Server) Stop() {
	s.Sync.Stop()
}
