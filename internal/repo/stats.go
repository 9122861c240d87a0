// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
)

// SubmissionStats returns aggregate metadata for a form type's submissions:
// the total number of rows and the maximum UpdatedAt timestamp among them.
//
// It executes two lightweight queries against the submissions table scoped
// to the provided form type. When there are no submissions, the returned
// count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total submissions for formType
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func SubmissionStats(ctx context.Context, db *gorm.DB, formType string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Submission{}).Where("form_type = ?", formType)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
