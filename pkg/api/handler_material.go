package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/objectstore"
	"github.com/courseforge/courseforge/pkg/services"
)

// addMaterialHandler handles POST /api/v1/courses/:id/materials. It accepts
// either a multipart upload (file-based materials, staged to object storage)
// or a JSON body with a source URL (web materials). The material is enqueued
// for background ingestion; the response is 202 with its pending state.
func (s *Server) addMaterialHandler(c *gin.Context) {
	tc := auth.MustTenant(c)
	materialSvc, err := services.NewMaterialService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	courseID := c.Param("id")

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		s.addUploadedMaterial(c, materialSvc, tc.TenantID, courseID)
		return
	}

	var req addMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if req.SourceURL == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "source_url is required for URL materials"})
		return
	}

	material, err := materialSvc.Create(c.Request.Context(),
		courseID, ingest.SourceType(req.SourceType), req.SourceURL, req.Title, "")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, materialToResponse(*material))
}

func (s *Server) addUploadedMaterial(c *gin.Context, materialSvc *services.MaterialService, tenantID, courseID string) {
	sourceType := c.PostForm("source_type")
	title := c.PostForm("title")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "file field is required for uploads"})
		return
	}
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "object storage is not configured"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer file.Close()

	materialID := uuid.NewString()
	objectKey := objectstore.ObjectKey(tenantID, materialID, fileHeader.Filename)

	contentType := fileHeader.Header.Get("Content-Type")
	if err := s.store.Put(c.Request.Context(), objectKey, file, fileHeader.Size, contentType); err != nil {
		abortWithError(c, err)
		return
	}

	material, err := materialSvc.Create(c.Request.Context(),
		courseID, ingest.SourceType(sourceType), fileHeader.Filename, title, objectKey)
	if err != nil {
		// The orphaned object is cheap; removal is best-effort.
		_ = s.store.Remove(c.Request.Context(), objectKey)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, materialToResponse(*material))
}

// slideMappingHandler handles POST /api/v1/courses/:id/slide-mapping.
// Responses: 201 all accepted, 207 partial, 422 nothing accepted.
func (s *Server) slideMappingHandler(c *gin.Context) {
	var req slideMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}

	tc := auth.MustTenant(c)
	mappingSvc, err := services.NewMappingService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	entries := make([]ingest.SlideVideoMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		entries = append(entries, ingest.SlideVideoMapping{
			SlideNumber:   m.SlideNumber,
			VideoTimecode: m.VideoTimecode,
		})
	}

	result, err := mappingSvc.Replace(c.Request.Context(), c.Param("id"), entries)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := mappingResponse{Accepted: len(result.Accepted), Rejected: result.Rejected}
	switch {
	case len(result.Accepted) == 0:
		c.JSON(http.StatusUnprocessableEntity, resp)
	case len(result.Rejected) > 0:
		c.JSON(http.StatusMultiStatus, resp)
	default:
		c.JSON(http.StatusCreated, resp)
	}
}
