package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	messageSuccess = "success"
	messageError   = "error"
)

// Response is the envelope written for every non-health endpoint
type Response struct {
	Path      string      `json:"path"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Code      string      `json:"code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Status    int         `json:"status"`
	Timestamp string      `json:"timestamp"`
}

// PageMeta describes a paginated listing
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPageMeta computes page counters
func NewPageMeta(page, limit int, total int64) PageMeta {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageMeta{
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// StatusName returns the upper snake case name of an HTTP status, e.g. NOT_FOUND
func StatusName(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "UNKNOWN"
	}
	text = strings.ReplaceAll(text, "-", " ")
	text = strings.ReplaceAll(text, "'", "")
	return strings.ToUpper(strings.Join(strings.Fields(text), "_"))
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// JSON writes a success envelope with the given status
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Path:      c.Request.URL.Path,
		Message:   messageSuccess,
		Data:      data,
		Status:    status,
		Timestamp: now(),
	})
}

// Paginated writes a success envelope carrying list metadata
func Paginated(c *gin.Context, data interface{}, meta PageMeta) {
	c.JSON(http.StatusOK, Response{
		Path:      c.Request.URL.Path,
		Message:   messageSuccess,
		Data:      data,
		Meta:      meta,
		Status:    http.StatusOK,
		Timestamp: now(),
	})
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error writes an error envelope; details mirrors the originating message
func Error(c *gin.Context, status int, details interface{}) {
	c.JSON(status, Response{
		Path:      c.Request.URL.Path,
		Message:   messageError,
		Code:      StatusName(status),
		Details:   details,
		Status:    status,
		Timestamp: now(),
	})
}

// Abort writes an error envelope and stops the handler chain
func Abort(c *gin.Context, status int, details interface{}) {
	Error(c, status, details)
	c.Abort()
}

func BadRequest(c *gin.Context, details interface{}) {
	Error(c, http.StatusBadRequest, details)
}

func Unauthorized(c *gin.Context, details interface{}) {
	Error(c, http.StatusUnauthorized, details)
}

func Forbidden(c *gin.Context, details interface{}) {
	Error(c, http.StatusForbidden, details)
}

func NotFound(c *gin.Context, details interface{}) {
	Error(c, http.StatusNotFound, details)
}

func Conflict(c *gin.Context, details interface{}) {
	Error(c, http.StatusConflict, details)
}

// InternalError never exposes the cause; callers log it
func InternalError(c *gin.Context, details string) {
	Error(c, http.StatusInternalServerError, details)
}
