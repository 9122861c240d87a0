package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-ingest-gateway/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("submission_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newSubmission(formType, hash string) *domain.Submission {
	return &domain.Submission{
		ID:               uuid.NewString(),
		FormType:         formType,
		Payload:          `{"email":"a@b.com"}`,
		PayloadHash:      hash,
		ForwardingStatus: domain.ForwardingPending,
		ReceivedAt:       time.Now().UTC(),
	}
}

func TestCreateSubmission_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	err := CreateSubmission(context.Background(), db, newSubmission("newsletter", "h1"))
	if err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateSubmission_DuplicatePayloadHash(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	if err := CreateSubmission(ctx, db, newSubmission("newsletter", "h1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := CreateSubmission(ctx, db, newSubmission("newsletter", "h1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same hash under a different form type is a distinct logical submission.
	if err := CreateSubmission(ctx, db, newSubmission("contact_sales", "h1")); err != nil {
		t.Fatalf("cross-form insert should succeed: %v", err)
	}
}

func TestCreateSubmission_DuplicateClientKey(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	key := "widget-1"
	first := newSubmission("newsletter", "h1")
	first.ClientKey = &key
	if err := CreateSubmission(ctx, db, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Different payload, same client key: still a duplicate.
	second := newSubmission("newsletter", "h2")
	second.ClientKey = &key
	if err := CreateSubmission(ctx, db, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on client key, got %v", err)
	}
}

func TestCreateSubmission_NullClientKeysDoNotCollide(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	if err := CreateSubmission(ctx, db, newSubmission("newsletter", "h1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := CreateSubmission(ctx, db, newSubmission("newsletter", "h2")); err != nil {
		t.Fatalf("second keyless insert should succeed: %v", err)
	}
}

func TestFindByDedupKeys(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	key := "widget-9"
	sub := newSubmission("newsletter", "h1")
	sub.ClientKey = &key
	if err := CreateSubmission(ctx, db, sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	byHash, err := FindByDedupKeys(ctx, db, "newsletter", "h1", "")
	if err != nil || byHash.ID != sub.ID {
		t.Fatalf("find by hash: %v, %v", byHash, err)
	}

	byKey, err := FindByDedupKeys(ctx, db, "newsletter", "other-hash", "widget-9")
	if err != nil || byKey.ID != sub.ID {
		t.Fatalf("find by client key: %v, %v", byKey, err)
	}

	if _, err := FindByDedupKeys(ctx, db, "newsletter", "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpireDedupKeys_ReleasesOldRowsKeepsRecords(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	key := "widget-1"
	old := newSubmission("newsletter", "h1")
	old.ClientKey = &key
	if err := CreateSubmission(ctx, db, old); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Age the row beyond the window.
	if err := db.Model(&domain.Submission{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}

	if err := ExpireDedupKeys(ctx, db, "newsletter", "h1", key, time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("ExpireDedupKeys: %v", err)
	}

	// The same logical submission is accepted again.
	again := newSubmission("newsletter", "h1")
	again.ClientKey = &key
	if err := CreateSubmission(ctx, db, again); err != nil {
		t.Fatalf("re-insert after expiry: %v", err)
	}

	// The aged row is retained, with its keys rewritten.
	kept, err := GetSubmission(ctx, db, old.ID)
	if err != nil {
		t.Fatalf("old row missing after expiry: %v", err)
	}
	if kept.PayloadHash != "expired:"+old.ID {
		t.Fatalf("expected sentinel hash, got %q", kept.PayloadHash)
	}
	if kept.ClientKey != nil {
		t.Fatalf("expected client key cleared, got %v", *kept.ClientKey)
	}
}

func TestExpireDedupKeys_LeavesFreshRowsAlone(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	fresh := newSubmission("newsletter", "h1")
	if err := CreateSubmission(ctx, db, fresh); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := ExpireDedupKeys(ctx, db, "newsletter", "h1", "", time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("ExpireDedupKeys: %v", err)
	}

	if err := CreateSubmission(ctx, db, newSubmission("newsletter", "h1")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("fresh dedup key should still reject, got %v", err)
	}
}

func TestUpdateForwardingStatus_Monotonic(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	sub := newSubmission("newsletter", "h1")
	if err := CreateSubmission(ctx, db, sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ext := "lead-77"
	if err := UpdateForwardingStatus(ctx, db, sub.ID, domain.ForwardingForwarded, &ext); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	got, err := GetSubmission(ctx, db, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ForwardingStatus != domain.ForwardingForwarded || got.ExternalID == nil || *got.ExternalID != "lead-77" {
		t.Fatalf("unexpected row after update: %+v", got)
	}

	// A second transition matches zero rows and must not revert the status.
	err = UpdateForwardingStatus(ctx, db, sub.ID, domain.ForwardingFailed, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second transition, got %v", err)
	}
	got, _ = GetSubmission(ctx, db, sub.ID)
	if got.ForwardingStatus != domain.ForwardingForwarded {
		t.Fatalf("status reverted to %q", got.ForwardingStatus)
	}
}

func TestCountAndListRecentSubmissions(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		sub := newSubmission("newsletter", fmt.Sprintf("h%d", i))
		sub.ReceivedAt = base.Add(time.Duration(i) * time.Minute)
		if err := CreateSubmission(ctx, db, sub); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := CreateSubmission(ctx, db, newSubmission("contact_sales", "other")); err != nil {
		t.Fatalf("insert other form: %v", err)
	}

	total, err := CountSubmissions(ctx, db, "newsletter")
	if err != nil || total != 5 {
		t.Fatalf("count = %d, %v; want 5", total, err)
	}

	recent, err := ListRecentSubmissions(ctx, db, "newsletter", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ReceivedAt.After(recent[i-1].ReceivedAt) {
			t.Fatalf("rows not ordered by received_at desc")
		}
	}
}

func TestSubmissionStats(t *testing.T) {
	db := newRepoDB(t, &domain.Submission{})
	ctx := context.Background()

	count, maxTS, err := SubmissionStats(ctx, db, "newsletter")
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty stats: count=%d ts=%v err=%v", count, maxTS, err)
	}

	if err := CreateSubmission(ctx, db, newSubmission("newsletter", "h1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, maxTS, err = SubmissionStats(ctx, db, "newsletter")
	if err != nil || count != 1 || maxTS == nil {
		t.Fatalf("stats after insert: count=%d ts=%v err=%v", count, maxTS, err)
	}
}
