// Package api provides the HTTP surface of the service.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/catalog"
	"github.com/courseforge/courseforge/pkg/config"
	"github.com/courseforge/courseforge/pkg/database"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/objectstore"
	"github.com/courseforge/courseforge/pkg/queue"
	"github.com/courseforge/courseforge/pkg/ratelimit"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	cfg      *config.Config
	registry *catalog.Registry
	dbClient *database.Client
	store    *objectstore.Store
	authSvc   *auth.Service
	limiter   ratelimit.Limiter
	agent     *architect.Agent
	llmRouter *llm.Router
	pool      *queue.WorkerPool

	// One structure generation per course at a time.
	genMu    sync.Mutex
	inFlight map[string]struct{}
}

// NewServer creates the API server and registers all routes.
func NewServer(
	cfg *config.Config,
	registry *catalog.Registry,
	dbClient *database.Client,
	store *objectstore.Store,
	authSvc *auth.Service,
	limiter ratelimit.Limiter,
	agent *architect.Agent,
	llmRouter *llm.Router,
	pool *queue.WorkerPool,
) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:   engine,
		cfg:      cfg,
		registry: registry,
		dbClient: dbClient,
		store:    store,
		authSvc:   authSvc,
		limiter:   limiter,
		agent:     agent,
		llmRouter: llmRouter,
		pool:      pool,
		inFlight:  make(map[string]struct{}),
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes. Health bypasses the auth gate; every
// /api/v1 route runs behind it, with per-route scope guards.
func (s *Server) setupRoutes() {
	s.engine.MaxMultipartMemory = 32 << 20

	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.Use(corsMiddleware(s.cfg.CORS), auth.Authenticate(s.authSvc))

	prep := v1.Group("")
	prep.Use(auth.RequireScope(s.limiter, models.ScopePrep))
	prep.POST("/courses", s.createCourseHandler)
	prep.POST("/courses/:id/materials", s.addMaterialHandler)
	prep.POST("/courses/:id/slide-mapping", s.slideMappingHandler)
	prep.POST("/courses/:id/structure/generate", s.generateStructureHandler)

	shared := v1.Group("")
	shared.Use(auth.RequireScope(s.limiter, models.ScopePrep, models.ScopeCheck))
	shared.GET("/courses/:id", s.getCourseHandler)
	shared.GET("/courses/:id/lessons/:lesson_id", s.getLessonHandler)
	shared.GET("/reports/cost", s.costReportHandler)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// beginGeneration reserves the course for one generation run.
func (s *Server) beginGeneration(courseID string) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if _, busy := s.inFlight[courseID]; busy {
		return false
	}
	s.inFlight[courseID] = struct{}{}
	return true
}

// endGeneration releases the course reservation.
func (s *Server) endGeneration(courseID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	delete(s.inFlight, courseID)
}
