// Package services – StatusService
//
// This file implements StatusService, the read-only aggregation surface:
// per-form-type totals plus the N most recent records with sensitive fields
// redacted. The status endpoint is unauthenticated by observed contract, so
// redaction is not optional.
package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/normalize"
	"github.com/tbourn/go-ingest-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StatusService serves read-only submission summaries.
type StatusService struct {
	DB *gorm.DB

	// DefaultLimit is used when the caller does not supply one.
	DefaultLimit int
	// MaxLimit caps the caller-supplied limit.
	MaxLimit int
}

// Overview is one form type's aggregate view.
type Overview struct {
	FormType   string
	TotalCount int64
	// RecentKey is the response key for the recent list ("recent_<plural>").
	RecentKey string
	Recent    []map[string]any
}

// Overview returns the stored total and the most recent redacted records
// for a form type. limit <= 0 falls back to DefaultLimit; values above
// MaxLimit are clamped.
func (s *StatusService) Overview(ctx context.Context, formType string, limit int) (*Overview, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "Overview",
		trace.WithAttributes(
			attribute.String("form.type", formType),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	spec, ok := normalize.SpecFor(formType)
	if !ok {
		return nil, ErrUnknownForm
	}

	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		limit = s.MaxLimit
	}

	total, err := repo.CountSubmissions(ctx, s.DB, formType)
	if err != nil {
		return nil, err
	}

	subs, err := repo.ListRecentSubmissions(ctx, s.DB, formType, limit)
	if err != nil {
		return nil, err
	}

	recent := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		recent = append(recent, redactedView(&sub, spec))
	}

	return &Overview{
		FormType:   formType,
		TotalCount: total,
		RecentKey:  spec.RecentKey,
		Recent:     recent,
	}, nil
}

// redactedView builds the public projection of one submission: canonical
// payload with sensitive fields masked and drop-listed fields removed, plus
// the record's own metadata.
func redactedView(sub *domain.Submission, spec normalize.FormSpec) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(sub.Payload), &payload); err != nil {
		payload = map[string]any{}
	}

	for _, f := range spec.DropOnStatus {
		delete(payload, f)
	}
	for _, f := range spec.Sensitive {
		if v, ok := payload[f]; ok {
			if s, ok := v.(string); ok {
				payload[f] = maskValue(s)
			}
		}
	}

	view := map[string]any{
		"id":                sub.ID,
		"form_type":         sub.FormType,
		"received_at":       sub.ReceivedAt,
		"forwarding_status": sub.ForwardingStatus,
		"payload":           payload,
	}
	if sub.ExternalID != nil {
		view["external_id"] = *sub.ExternalID
	}
	return view
}

// maskValue hides a sensitive value while keeping enough shape for humans
// to correlate: emails keep the first rune and domain, everything else
// keeps the last two characters.
func maskValue(s string) string {
	if s == "" {
		return ""
	}
	if at := strings.LastIndex(s, "@"); at > 0 {
		runes := []rune(s[:at])
		return string(runes[0]) + "***@" + s[at+1:]
	}
	if len(s) <= 2 {
		return "***"
	}
	return "***" + s[len(s)-2:]
}
