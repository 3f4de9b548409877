package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

const ownerKey = "owner_id"

// CORS allows the dashboard origins configured for this deployment.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
		AllowCredentials: true,
	}
	return cors.New(config)
}

// Auth resolves the already-authenticated caller identity. Session handling
// lives in front of this service; what arrives here is the trusted owner id
// header, and a request without one is rejected before anything else runs.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			respondAppError(c, common.NotAuthenticatedError("missing caller identity"))
			c.Abort()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			respondAppError(c, common.NotAuthenticatedError("invalid caller identity"))
			c.Abort()
			return
		}
		c.Set(ownerKey, id)
		c.Next()
	}
}

func ownerFrom(c *gin.Context) uuid.UUID {
	return c.MustGet(ownerKey).(uuid.UUID)
}

// RequestLogger tags each request with an id and logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.New().String()
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Next()

		logger.Info("http.request",
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

// MaxBodySize caps request bodies, mostly for the upload route.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
