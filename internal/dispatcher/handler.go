package dispatcher

import (
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"molock/internal/route"
	"molock/internal/rule"
)

// handleMock implements the §4.5 dispatch pipeline for every request that
// doesn't match a system endpoint.
func (d *Dispatcher) handleMock(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		limit := d.MaxRequestSize
		if limit <= 0 {
			limit = 10 << 20
		}
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
		if err == nil {
			body = data
		}
	}

	if len(body) > 0 && !utf8.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UTF-8 sequence in request body"})
		return
	}

	ep, params, err := d.index().Match(c.Request.Method, c.Request.URL.Path)
	if err != nil {
		d.respondInternalError(c, err)
		return
	}

	reqCtx := &rule.RequestContext{
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		RawQuery:   c.Request.URL.RawQuery,
		ClientIP:   d.clientIP(c),
		Headers:    c.Request.Header,
		PathParams: params,
	}

	selection, err := d.engine.Select(c.Request.Context(), ep, reqCtx, c.GetHeader("X-Request-ID"))
	if err != nil {
		d.respondInternalError(c, err)
		return
	}

	for k, v := range selection.Headers {
		c.Header(k, v)
	}
	if selection.Body == "" {
		c.Status(selection.Status)
		return
	}
	c.Data(selection.Status, contentTypeOrDefault(selection.Headers), []byte(selection.Body))
}

// respondInternalError maps any core failure (NoRoute, NoResponse,
// NoProbability) to the stable 500 JSON envelope and records the failure
// against the error-count metric.
func (d *Dispatcher) respondInternalError(c *gin.Context, err error) {
	if d.provider != nil {
		d.provider.RecordError(c.Request.Context(), c.Request.Method, c.Request.URL.Path, errorType(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "Internal server error",
		"request_id": uuid.New().String(),
	})
}

func errorType(err error) string {
	switch {
	case errors.Is(err, route.ErrNoRoute):
		return "not_found"
	default:
		return "internal_error"
	}
}

// clientIP honors a configured real-IP header before falling back to gin's
// own remote-address resolution.
func (d *Dispatcher) clientIP(c *gin.Context) string {
	if d.RealIPHeader != "" {
		if v := c.GetHeader(d.RealIPHeader); v != "" {
			return v
		}
	}
	return c.ClientIP()
}

func contentTypeOrDefault(headers map[string]string) string {
	for k, v := range headers {
		if k == "Content-Type" || k == "content-type" {
			return v
		}
	}
	return "application/json"
}
