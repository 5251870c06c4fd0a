package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/dicerace/internal/coordinator"
	"github.com/danmuck/dicerace/internal/game"
	"github.com/danmuck/dicerace/internal/observability"
	"github.com/danmuck/dicerace/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Service runs the race server: HTTP routes, websocket hub and the
// coordinator loop.
type Service struct {
	cfg      ServiceConfig
	started  time.Time
	router   *gin.Engine
	upgrader websocket.Upgrader
	hub      *transport.Hub
	coord    *coordinator.Coordinator
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig wires a service. engine may carry test hooks (rand,
// code source); its Rules are replaced by cfg.Rules.
func NewServiceWithConfig(cfg ServiceConfig, engine ...game.EngineConfig) *Service {
	cfg = cfg.WithDefaults()
	observability.RegisterMetrics()

	ecfg := game.DefaultEngineConfig()
	if len(engine) > 0 {
		ecfg = engine[0]
	}
	ecfg.Rules = cfg.Rules

	hub := transport.NewHub(cfg.Transport)
	s := &Service{
		cfg:     cfg,
		started: time.Now(),
		hub:     hub,
		coord: coordinator.New(game.NewStore(), hub, coordinator.Config{
			QueueSize: cfg.IntentQueue,
			Engine:    ecfg,
		}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.newRouter()
	s.registerRoutes()
	return s
}

func (s *Service) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/health", "/ready", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowAllOrigins(s.cfg.CORSOrigins) {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	}
	r.Use(cors.New(corsCfg))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	return r
}

// checkOrigin applies the CORS origin list to websocket upgrades. Requests
// without an Origin header are not from a browser and are let through.
func (s *Service) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowAllOrigins(s.cfg.CORSOrigins) {
		return true
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) Coordinator() *coordinator.Coordinator {
	return s.coord
}

func (s *Service) Hub() *transport.Hub {
	return s.hub
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.cfg.Validate(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the coordinator and HTTP server on ln until ctx ends, then
// shuts down within the configured grace period.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- s.coord.Run(loopCtx)
	}()

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(ln)
	}()

	log.Info().
		Str("name", s.cfg.Name).
		Str("addr", ln.Addr().String()).
		Bool("trust_client_dice", s.cfg.Rules.TrustClientDice).
		Bool("lock_finished_sessions", s.cfg.Rules.LockFinishedSessions).
		Msg("dicerace server listening")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	// Hub first so pending disconnects still reach a live coordinator.
	if err := s.hub.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Int("connections", s.hub.Count()).Msg("hub close incomplete")
	}
	stopLoop()
	if err := <-loopDone; err != nil && runErr == nil {
		runErr = err
	}
	log.Info().Msg("dicerace server stopped")
	return runErr
}
