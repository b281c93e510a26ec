package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/database"
	"github.com/courseforge/courseforge/pkg/version"
)

// healthHandler handles GET /health. No auth.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	dbHealth, err := database.Health(ctx, s.dbClient.SQL())
	if err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s3Status := "healthy"
	if s.store != nil {
		if err := s.store.Health(ctx); err != nil {
			s3Status = "unhealthy"
			status = "degraded"
		}
	} else {
		s3Status = "disabled"
	}

	resp := healthResponse{
		Status:  status,
		Version: version.Full(),
		Checks: healthChecks{
			DB: dbHealth,
			S3: s3Status,
		},
		Catalog: s.registry.Stats(),
	}
	if s.pool != nil {
		resp.Workers = s.pool.Health(ctx)
	}

	c.JSON(code, resp)
}
