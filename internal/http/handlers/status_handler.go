// Status HTTP handlers.
//
// This file exposes the read-only aggregation endpoint:
//   - GET /ingest/{form}/status   (total count + recent redacted records)
//
// The endpoint is public by contract, so the service layer redacts sensitive
// fields before anything leaves the process. Responses carry a weak ETag so
// polling dashboards can cheaply short-circuit with 304.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/repo"
	"github.com/tbourn/go-ingest-gateway/internal/services"
	"github.com/tbourn/go-ingest-gateway/internal/utils"
)

// Status returns aggregate information for one form type.
//
// Query parameters:
//   - limit: number of recent records to include (service clamps bounds).
//
// Responses:
//
//	200 {"form_type":...,"total_count":N,"recent_<plural>":[...]}
//	304 when If-None-Match matches the current weak ETag
//	404 unknown form slug
//	500 storage failure
func (h *Handlers) Status(c *gin.Context) {
	ctx := c.Request.Context()

	formType, found := domain.ParseFormType(c.Param("form"))
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown form type")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.statusSvc.(*services.StatusService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.SubmissionStats(ctx, db, formType)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"ingest:%s:%d:%d"`, formType, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	ov, err := h.statusSvc.Overview(ctx, formType, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load status")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"form_type":   ov.FormType,
		"total_count": ov.TotalCount,
		ov.RecentKey:  ov.Recent,
	})
}
