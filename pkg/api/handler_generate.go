package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/services"
)

const defaultGenerationMode = "full"

// generateStructureHandler handles POST /api/v1/courses/:id/structure/generate.
// Responses: 200 with the cached snapshot when the fingerprint matches,
// 202 when a generation run was queued, 409 when one is already running,
// 422 when the course has no ready material.
func (s *Server) generateStructureHandler(c *gin.Context) {
	// The body is optional; only a malformed one is rejected.
	var req generateStructureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
			return
		}
	}
	if req.Mode == "" {
		req.Mode = defaultGenerationMode
	}

	tc := auth.MustTenant(c)
	courseID := c.Param("id")

	materialSvc, err := services.NewMaterialService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	snapshotSvc, err := services.NewSnapshotService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	mappingSvc, err := services.NewMappingService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	courseSvc, err := services.NewCourseService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	docs, materialIDs, err := materialSvc.ReadyDocuments(c.Request.Context(), courseID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	fingerprint := services.Fingerprint(materialIDs, req.Mode)

	// Idempotent replay: same material set and mode returns the stored
	// snapshot without another model round-trip.
	if structure, snapshotID, err := snapshotSvc.Find(c.Request.Context(), courseID, fingerprint); err == nil {
		c.JSON(http.StatusOK, generateResponse{
			Status:      "complete",
			SnapshotID:  snapshotID,
			Fingerprint: fingerprint,
			Structure:   structure,
		})
		return
	} else if !errors.Is(err, services.ErrNotFound) {
		abortWithError(c, err)
		return
	}

	mappings, err := mappingSvc.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if !s.beginGeneration(courseID) {
		abortWithError(c, services.ErrGenerationInProgress)
		return
	}

	// The run outlives the request: detach from the HTTP context but keep
	// the tenant identity for ledger attribution.
	runCtx := auth.WithTenant(context.Background(), tc)
	strategy := req.Strategy

	go func() {
		defer s.endGeneration(courseID)
		s.runGeneration(runCtx, courseSvc, snapshotSvc, courseID, fingerprint, strategy, docs, mappings)
	}()

	c.JSON(http.StatusAccepted, generateResponse{
		Status:      "queued",
		Fingerprint: fingerprint,
	})
}

// runGeneration merges the documents, invokes the architect, and persists
// both the snapshot and the course structure.
func (s *Server) runGeneration(
	ctx context.Context,
	courseSvc *services.CourseService,
	snapshotSvc *services.SnapshotService,
	courseID, fingerprint, strategy string,
	docs []ingest.Document,
	mappings []ingest.SlideVideoMapping,
) {
	log := slog.With("course_id", courseID, "fingerprint", fingerprint)

	courseCtx, err := ingest.Merge(docs, mappings)
	if err != nil {
		log.Error("Merge failed", "error", err)
		return
	}

	agent := s.agent
	if strategy != "" {
		agent = architect.NewAgent(s.llmRouter,
			architect.WithPromptPath(s.cfg.PromptPath),
			architect.WithStrategy(strategy))
	}

	structure, err := agent.Run(ctx, courseCtx)
	if err != nil {
		log.Error("Structure generation failed", "error", err)
		return
	}

	if _, err := snapshotSvc.Save(ctx, courseID, fingerprint, structure); err != nil {
		log.Error("Failed to save structure snapshot", "error", err)
	}
	if err := courseSvc.SaveStructure(ctx, courseID, structure); err != nil {
		log.Error("Failed to persist course structure", "error", err)
		return
	}
	log.Info("Course structure generated")
}
