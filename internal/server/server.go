package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/export"
	"github.com/ledgerstack/ledgerstack/internal/pipeline"
	"github.com/ledgerstack/ledgerstack/internal/storage"
)

// API bundles everything the handlers need.
type API struct {
	cfg      common.ServerConfig
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	export   *export.Service
	store    *storage.DiskStore
}

func NewAPI(cfg common.ServerConfig, logger *slog.Logger, p *pipeline.Pipeline, exp *export.Service, store *storage.DiskStore) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{cfg: cfg, logger: logger, pipeline: p, export: exp, store: store}
}

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func New(api *API) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(api.logger))
	r.Use(CORS(api.cfg.CORSOrigins))

	registerRoutes(r, api)

	return &Server{
		httpServer: &http.Server{
			Addr:              api.cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: api.logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("http serving", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http shutting down")
	return s.httpServer.Shutdown(ctx)
}
