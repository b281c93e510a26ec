package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/services"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

// abortWithError maps service-layer errors to HTTP responses.
func abortWithError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: validErr.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Detail: "resource not found"})
	case errors.Is(err, services.ErrNoReadyMaterial):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{Detail: "course has no ready source material"})
	case errors.Is(err, services.ErrGenerationInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Detail: "structure generation already in progress"})
	case errors.Is(err, services.ErrAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Detail: "resource already exists"})
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
	case errors.Is(err, architect.ErrPromptPackNotFound), errors.Is(err, architect.ErrPromptPackInvalid):
		slog.Error("Prompt pack misconfigured", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	case llm.IsAllModelsFailed(err):
		slog.Error("All models failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Detail: "all language models failed"})
	default:
		slog.Error("Unexpected service error", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}
}
