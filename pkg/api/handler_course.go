package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/services"
)

// createCourseHandler handles POST /api/v1/courses.
func (s *Server) createCourseHandler(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}

	tc := auth.MustTenant(c)
	courseSvc, err := services.NewCourseService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	course, err := courseSvc.Create(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, courseToResponse(course))
}

// getCourseHandler handles GET /api/v1/courses/:id.
func (s *Server) getCourseHandler(c *gin.Context) {
	tc := auth.MustTenant(c)
	courseSvc, err := services.NewCourseService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	course, err := courseSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, courseToResponse(course))
}

// getLessonHandler handles GET /api/v1/courses/:id/lessons/:lesson_id.
func (s *Server) getLessonHandler(c *gin.Context) {
	tc := auth.MustTenant(c)
	courseSvc, err := services.NewCourseService(s.dbClient.DB, tc.TenantID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	lesson, err := courseSvc.GetLesson(c.Request.Context(), c.Param("id"), c.Param("lesson_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lessonToResponse(*lesson))
}

// costReportHandler handles GET /api/v1/reports/cost.
func (s *Server) costReportHandler(c *gin.Context) {
	tc := auth.MustTenant(c)
	tenantID := tc.TenantID
	callSvc := services.NewLLMCallService(s.dbClient.DB, &tenantID)

	report, err := callSvc.CostReport(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": report})
}
