// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// ForwardingAttempt model used to diagnose dashboard delivery behavior.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
)

// CreateAttempt inserts one delivery-attempt record. ID and CreatedAt are
// assigned here so callers only describe the attempt itself.
func CreateAttempt(ctx context.Context, db *gorm.DB, att *domain.ForwardingAttempt) error {
	att.ID = uuid.NewString()
	att.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(att).Error
}

// ListAttempts returns all delivery attempts for a submission, oldest first.
func ListAttempts(ctx context.Context, db *gorm.DB, submissionID string) ([]domain.ForwardingAttempt, error) {
	var out []domain.ForwardingAttempt
	err := db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("attempt_number asc").
		Find(&out).Error
	return out, err
}
