package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"folio/internal/logger"
)

// PipelineKey extracts the pipeline key from X-API-Key, or from an
// "Authorization: ApiKey <key>" header.
func PipelineKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if scheme, key, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && scheme == "ApiKey" {
		return key
	}
	return ""
}

// PipelineAuthMiddleware guards the pipeline endpoints (price ingestion,
// snapshot runs) with a static API key. The endpoints answer 503 while no key
// is configured.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(apiKey))
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": gin.H{"code": "PIPELINE_NOT_CONFIGURED", "message": "Pipeline endpoints are not configured"}})
			return
		}
		got := sha256.Sum256([]byte(PipelineKey(c)))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logger.Get().Warnw("pipeline key rejected",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "INVALID_API_KEY", "message": "Invalid or missing API key"}})
			return
		}
		c.Next()
	}
}
