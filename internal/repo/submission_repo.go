// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Submission
// model: the append-only authoritative record of every accepted submission.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a submission is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - CreateSubmission returns ErrDuplicate when either dedup key
//     (payload hash or client key) collides within the form type; this is
//     the storage-level check-and-set the idempotency guard relies on.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error
//     is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a submission with the same dedup key already
// exists for the given form type.
var ErrDuplicate = errors.New("duplicate")

// CreateSubmission inserts a new submission row. The unique indexes on
// (form_type, payload_hash) and (form_type, client_key) make the insert an
// atomic check-and-set: of two racing callers with the same key, exactly one
// succeeds and the other receives ErrDuplicate. This holds across gateway
// instances because the condition is enforced by the database, not by
// process-local locks.
func CreateSubmission(ctx context.Context, db *gorm.DB, sub *domain.Submission) error {
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindByDedupKeys returns the existing submission matching either dedup key
// for the form type, or ErrNotFound. It is used to surface the prior
// record's identity after CreateSubmission reports ErrDuplicate.
func FindByDedupKeys(ctx context.Context, db *gorm.DB, formType, payloadHash, clientKey string) (*domain.Submission, error) {
	q := db.WithContext(ctx).Where("form_type = ?", formType)
	if clientKey != "" {
		q = q.Where("payload_hash = ? OR client_key = ?", payloadHash, clientKey)
	} else {
		q = q.Where("payload_hash = ?", payloadHash)
	}
	var sub domain.Submission
	if err := q.First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ExpireDedupKeys releases the dedup keys of submissions older than the
// retention window so a new logical duplicate is accepted again. The rows
// themselves are never deleted (local durability is the whole point);
// instead the dedup columns are rewritten to a per-row sentinel that cannot
// collide. Called on the insert path before CreateSubmission.
func ExpireDedupKeys(ctx context.Context, db *gorm.DB, formType, payloadHash, clientKey string, before time.Time) error {
	q := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("form_type = ? AND created_at < ?", formType, before)
	if clientKey != "" {
		q = q.Where("payload_hash = ? OR client_key = ?", payloadHash, clientKey)
	} else {
		q = q.Where("payload_hash = ?", payloadHash)
	}
	return q.Updates(map[string]any{
		"payload_hash": gorm.Expr("'expired:' || id"),
		"client_key":   nil,
	}).Error
}

// GetSubmission fetches a single submission by ID, or ErrNotFound.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	var sub domain.Submission
	if err := db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateForwardingStatus records the outcome of the forwarding pipeline for
// one submission. The WHERE clause only matches rows still pending, which
// makes the pending -> {forwarded|failed} transition monotonic: a second
// call (or a late retry racing a completed one) affects zero rows and
// returns ErrNotFound instead of reverting the status.
func UpdateForwardingStatus(ctx context.Context, db *gorm.DB, id, status string, externalID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND forwarding_status = ?", id, domain.ForwardingPending).
		Updates(map[string]any{
			"forwarding_status": status,
			"external_id":       externalID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountSubmissions returns the total number of stored submissions for a
// form type. On DB error, it returns the error.
func CountSubmissions(ctx context.Context, db *gorm.DB, formType string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("form_type = ?", formType).
		Count(&total).Error
	return total, err
}

// ListRecentSubmissions returns the limit most recent submissions for a
// form type, ordered by acceptance time descending.
func ListRecentSubmissions(ctx context.Context, db *gorm.DB, formType string, limit int) ([]domain.Submission, error) {
	var out []domain.Submission
	err := db.WithContext(ctx).
		Where("form_type = ?", formType).
		Order("received_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
