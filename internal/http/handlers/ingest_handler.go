// Ingestion HTTP handlers.
//
// This file exposes the submission endpoint:
//   - POST /ingest/{form}   (accept, normalize, store, forward)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. All business rules (required
// fields, dedup, forwarding policy) live in the services package.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/http/middleware"
	"github.com/tbourn/go-ingest-gateway/internal/normalize"
	"github.com/tbourn/go-ingest-gateway/internal/services"
)

//
// Service contracts (context-aware)
//

// IngestService defines the submission pipeline consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IngestService interface {
	// Submit normalizes, dedup-checks, stores, and forwards one payload.
	Submit(ctx context.Context, formType string, raw map[string]any) (*services.SubmitResult, error)
}

// StatusService defines the read-only aggregation surface.
type StatusService interface {
	// Overview returns totals and recent redacted records for a form type.
	Overview(ctx context.Context, formType string, limit int) (*services.Overview, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for ingestion and status. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	ingestSvc IngestService
	statusSvc StatusService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ingestSvc IngestService, statusSvc StatusService) *Handlers {
	return &Handlers{ingestSvc: ingestSvc, statusSvc: statusSvc}
}

//
// Handlers
//

// Ingest accepts one form submission.
//
// The :form path segment is a public slug (e.g. "newsletter-signup",
// "demo_requests") resolved to a canonical form type; unknown slugs are 404.
// The body must be a flat JSON object. Responses:
//
//	200 {"status":"success","id":...,"forwarding_status":...,"external_response":{...}?}
//	400 malformed JSON body
//	404 unknown form slug
//	422 validation failure (field-level message)
//	429 duplicate submission (idempotency guard)
//	500 local store unavailable / unexpected failure
func (h *Handlers) Ingest(c *gin.Context) {
	slug := c.Param("form")
	formType, found := domain.ParseFormType(slug)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown form type")
		return
	}

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		middleware.ObserveSubmission(formType, "rejected")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request body must be a JSON object")
		return
	}

	res, err := h.ingestSvc.Submit(c.Request.Context(), formType, raw)
	if err != nil {
		h.failSubmit(c, formType, err)
		return
	}

	middleware.ObserveSubmission(formType, "accepted")

	body := gin.H{
		"status":            "success",
		"id":                res.Submission.ID,
		"forwarding_status": res.Submission.ForwardingStatus,
	}
	if res.Attempted {
		ext := gin.H{
			"status":   res.Forward.Status,
			"attempts": res.Forward.Attempts,
		}
		if res.Forward.StatusCode != 0 {
			ext["status_code"] = res.Forward.StatusCode
		}
		if res.Forward.ExternalID != nil {
			ext["external_id"] = *res.Forward.ExternalID
		}
		body["external_response"] = ext
	}
	ok(c, http.StatusOK, body)
}

// failSubmit maps service-layer errors onto the response taxonomy. Dashboard
// forwarding failures never reach here: they are absorbed by the pipeline and
// reported through forwarding_status on the success body.
func (h *Handlers) failSubmit(c *gin.Context, formType string, err error) {
	var verr *normalize.ValidationError
	var derr *services.DuplicateError

	switch {
	case errors.As(err, &verr):
		middleware.ObserveSubmission(formType, "invalid")
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, verr.Error())
	case errors.As(err, &derr):
		middleware.ObserveSubmission(formType, "duplicate")
		reqID := c.Writer.Header().Get("X-Request-ID")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": reqID,
			"code":       ErrCodeDuplicate,
			"message":    "submission already received",
			"prior_id":   derr.PriorID,
		})
	case errors.Is(err, services.ErrUnknownForm):
		middleware.ObserveSubmission(formType, "rejected")
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown form type")
	case errors.Is(err, services.ErrStoreUnavailable):
		middleware.ObserveSubmission(formType, "error")
		fail(c, http.StatusInternalServerError, ErrCodeStorageUnavailable, "local store unavailable")
	default:
		middleware.ObserveSubmission(formType, "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
