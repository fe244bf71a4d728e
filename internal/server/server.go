package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hcadmin/internal/config"
	"hcadmin/internal/handlers"
	"hcadmin/internal/middleware"
	"hcadmin/internal/service"
)

const maxHeaderBytes = 64 << 10

type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewEngine builds the router without binding a listener.
func NewEngine(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet) (*gin.Engine, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.MaxMultipartMemory = cfg.Storage.MaxUploadBytes
	// ClientIP keys rate limits and is stored on sessions, so forwarded
	// headers are only honoured from configured proxies.
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.AllowCORSOrigins),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ReasonNotFound})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
	})

	handlerSet.Register(engine.Group("/api"))
	return engine, nil
}

func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet) (*HTTPServer, error) {
	engine, err := NewEngine(cfg, log, handlerSet)
	if err != nil {
		return nil, err
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:           engine,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
		log: log,
	}, nil
}

// Start blocks until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
