package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope every endpoint answers with.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Fail writes an error envelope and aborts the handler chain, so middleware
// may call it without a separate c.Abort.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Error: msg})
}

func OK(c *gin.Context, data interface{})      { ok(c, http.StatusOK, data) }
func Created(c *gin.Context, data interface{}) { ok(c, http.StatusCreated, data) }

// NoContent sends 204 with no body.
func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

func BadRequest(c *gin.Context, msg string)         { Fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)       { Fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)          { Fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)           { Fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)           { Fail(c, http.StatusConflict, msg) }
func Gone(c *gin.Context, msg string)               { Fail(c, http.StatusGone, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Fail(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string)           { Fail(c, http.StatusInternalServerError, msg) }
