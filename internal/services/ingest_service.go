// Package services – IngestService
//
// This file implements IngestService, the application-level component that
// owns the ingestion pipeline for one submission: normalization, idempotency
// guarding, durable local persistence, and best-effort dashboard forwarding.
//
// Ordering is load-bearing: the local write must durably complete before a
// forwarding attempt starts, and forwarding runs on a context detached from
// the client request so a disconnect cannot cancel work that is already a
// durability promise.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include the form type and submission identifiers.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/forward"
	"github.com/tbourn/go-ingest-gateway/internal/normalize"
	"github.com/tbourn/go-ingest-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestService coordinates the accept-store-forward pipeline.
type IngestService struct {
	DB        *gorm.DB
	Forwarder *forward.Client

	// DedupTTL bounds the idempotency window: dedup keys older than this
	// stop rejecting duplicates (the records themselves are retained).
	DedupTTL time.Duration
}

// SubmitResult carries everything the transport layer needs to assemble the
// uniform success response.
type SubmitResult struct {
	Submission *domain.Submission
	// Record is the normalized canonical record that was stored.
	Record map[string]any
	// Forward is the terminal forwarding outcome; zero-valued (Status
	// not_attempted) when no dashboard is configured.
	Forward forward.Result
	// Attempted reports whether a forwarding attempt occurred at all.
	Attempted bool
}

// Submit runs the full pipeline for one raw client payload.
//
// Pipeline:
//  1. normalize raw into the canonical record (ValidationError on failure)
//  2. derive dedup keys (payload hash + optional client key)
//  3. release expired dedup keys, then insert-if-absent; a duplicate yields
//     *DuplicateError carrying the prior record's id
//  4. forward best-effort to the dashboard on a detached context
//
// Any 2xx outcome means the record is safely durable locally regardless of
// the forwarding result.
func (s *IngestService) Submit(ctx context.Context, formType string, raw map[string]any) (*SubmitResult, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("form.type", formType)),
	)
	defer span.End()

	if !domain.ValidFormType(formType) {
		return nil, ErrUnknownForm
	}

	record, err := normalize.Record(formType, raw)
	if err != nil {
		return nil, err
	}

	payloadJSON, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	hash := normalize.Fingerprint(formType, record)
	clientKey := normalize.ClientKey(raw)

	now := time.Now().UTC()

	// Release dedup keys that have aged out of the window so a legitimate
	// re-submission is accepted again. Best effort: if this fails the
	// insert below simply behaves as if the window were longer.
	if s.DedupTTL > 0 {
		_ = repo.ExpireDedupKeys(ctx, s.DB, formType, hash, clientKey, now.Add(-s.DedupTTL))
	}

	status := domain.ForwardingPending
	if s.Forwarder == nil || !s.Forwarder.Configured() {
		status = domain.ForwardingNotAttempted
	}

	sub := &domain.Submission{
		ID:               uuid.NewString(),
		FormType:         formType,
		Payload:          string(payloadJSON),
		PayloadHash:      hash,
		ForwardingStatus: status,
		ReceivedAt:       now,
	}
	if clientKey != "" {
		sub.ClientKey = &clientKey
	}
	span.SetAttributes(attribute.String("submission.id", sub.ID))

	if err := repo.CreateSubmission(ctx, s.DB, sub); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			if prior, ferr := repo.FindByDedupKeys(ctx, s.DB, formType, hash, clientKey); ferr == nil {
				return nil, &DuplicateError{PriorID: prior.ID, FormType: formType}
			}
			// The racing insert won but its row is not visible yet; the
			// rejection stands even without the prior id.
			return nil, &DuplicateError{FormType: formType}
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	res := &SubmitResult{Submission: sub, Record: record}
	if status == domain.ForwardingNotAttempted {
		res.Forward = forward.Result{Status: domain.ForwardingNotAttempted}
		return res, nil
	}

	// Durability is committed; forwarding must survive a client disconnect.
	fwdCtx := context.WithoutCancel(ctx)
	res.Forward = s.Forwarder.Forward(fwdCtx, sub, record)
	res.Attempted = true

	sub.ForwardingStatus = res.Forward.Status
	sub.ExternalID = res.Forward.ExternalID
	return res, nil
}
