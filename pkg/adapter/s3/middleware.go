package s3

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marmos91/baza/internal/logger"
)

const (
	// requestIDKey is the gin context key holding the request id.
	requestIDKey = "s3.request_id"

	headerRequestID = "X-Amz-Request-Id"
)

// requestID tags every request with a unique id, echoed in the response
// headers and in XML error bodies.
func (a *S3Adapter) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// observe records request metrics and the access log line once the rest of
// the chain has run.
func (a *S3Adapter) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		a.metrics.ObserveRequest(c.Request.Method, status, duration)

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		logger.Info("S3 %s %s -> %d (%s sent, %v) client=%s id=%s",
			c.Request.Method, c.Request.URL.Path, status,
			humanize.Bytes(uint64(size)), duration, c.ClientIP(), c.GetString(requestIDKey))
	}
}

// recovered turns a handler panic into a 500 InternalError.
func (a *S3Adapter) recovered(c *gin.Context, rec any) {
	logger.Error("S3 handler panic on %s %s: %v", c.Request.Method, c.Request.URL.Path, rec)
	abortWithError(c, ErrInternal)
}

// rateLimit rejects clients exceeding their per-IP budget with 503 SlowDown.
func (a *S3Adapter) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.limiter.Allow(c.ClientIP()) {
			a.metrics.IncRateLimited()
			abortWithError(c, ErrSlowDown)
			return
		}
		c.Next()
	}
}

// storageReady answers 503 ServiceUnavailable until SetStorage has been
// called, which only happens when Handler() is mounted directly.
func (a *S3Adapter) storageReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.creator == nil || a.linker == nil || a.reader == nil {
			abortWithError(c, ErrServiceUnavailable)
			return
		}
		c.Next()
	}
}
