// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the ingest-key gate protecting submission endpoints.
// The key is a single shared secret distributed to embedding sites; it
// identifies the deployment, not an individual visitor, so there is no
// per-user session or token exchange involved.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ingestKeyHeader is the HTTP header carrying the shared ingest secret.
const ingestKeyHeader = "X-INGEST-KEY"

// RequireIngestKey returns a Gin middleware that rejects requests whose
// X-INGEST-KEY header does not match the configured secret.
//
// Behavior:
//   - Comparison is constant-time to avoid leaking key prefixes via timing.
//   - Missing and mismatched keys are indistinguishable to the caller: both
//     produce the same 401 body.
//   - On rejection the request is aborted before any handler runs, so an
//     unauthenticated submission is never parsed, validated, or stored.
//
// The middleware emits:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "<uuid>",
//	  "code":       "unauthorized",
//	  "message":    "missing or invalid ingest key"
//	}
func RequireIngestKey(key string) gin.HandlerFunc {
	secret := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(ingestKeyHeader))
		if len(secret) == 0 || subtle.ConstantTimeCompare(got, secret) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid ingest key",
			})
			return
		}
		c.Next()
	}
}
