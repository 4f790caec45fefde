package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tripflow/internal/domain/apperror"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    apperror.Code          `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.services.Ready != nil && !h.services.Ready() {
		response.Status = "starting"
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    response,
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// statusFor maps an error code to its HTTP status
func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeValidation:
		return http.StatusBadRequest
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeNotAuthorized, apperror.CodeSelfApproval:
		return http.StatusForbidden
	case apperror.CodeNoPendingStep, apperror.CodeInvalidStateTransition, apperror.CodeConcurrencyConflict:
		return http.StatusConflict
	case apperror.CodeBudgetExceeded, apperror.CodeRateNotFound, apperror.CodeNoApproverConfigured:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a structured failure. Uncoded errors are logged and hidden.
func (h *Handlers) respondError(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	status := statusFor(code)

	resp := Response{Success: false, Code: code, Error: err.Error()}
	var coded apperror.Coded
	if errors.As(err, &coded) {
		resp.Details = coded.Details()
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"request_id", c.GetString(contextRequestID),
			"path", c.Request.URL.Path,
			"error", err)
		resp.Error = "internal error"
		resp.Code = "INTERNAL_ERROR"
	}

	c.JSON(status, resp)
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   message,
		Code:    apperror.CodeValidation,
	})
}

// pathID parses a positive integer path parameter, writing a 400 on failure
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns it in UTC
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
