package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-ingest-gateway/internal/config"
	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/forward"
	"github.com/tbourn/go-ingest-gateway/internal/normalize"
	"github.com/tbourn/go-ingest-gateway/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ingest_service_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newIngestService(db *gorm.DB, fwd *forward.Client) *IngestService {
	return &IngestService{DB: db, Forwarder: fwd, DedupTTL: 24 * time.Hour}
}

func TestSubmit_StoresNormalizedRecord(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)

	res, err := svc.Submit(context.Background(), domain.FormNewsletter, map[string]any{
		"email_address": "a@b.com",
		"signup_source": "web",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Submission.ID == "" {
		t.Fatalf("no id assigned")
	}
	if res.Submission.ForwardingStatus != domain.ForwardingNotAttempted {
		t.Fatalf("no forwarder configured; expected not_attempted, got %q", res.Submission.ForwardingStatus)
	}
	if res.Record["email"] != "a@b.com" {
		t.Fatalf("record not normalized: %v", res.Record)
	}

	stored, err := repo.GetSubmission(context.Background(), db, res.Submission.ID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.FormType != domain.FormNewsletter {
		t.Fatalf("unexpected stored row: %+v", stored)
	}
}

func TestSubmit_DuplicateByPayloadHash(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)
	ctx := context.Background()
	raw := map[string]any{"email": "a@b.com", "source": "web"}

	first, err := svc.Submit(ctx, domain.FormNewsletter, raw)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, err = svc.Submit(ctx, domain.FormNewsletter, raw)
	var derr *DuplicateError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DuplicateError, got %v", err)
	}
	if derr.PriorID != first.Submission.ID {
		t.Fatalf("prior id = %q, want %q", derr.PriorID, first.Submission.ID)
	}

	total, _ := repo.CountSubmissions(ctx, db, domain.FormNewsletter)
	if total != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", total)
	}
}

func TestSubmit_DuplicateByClientID(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, domain.FormNewsletter, map[string]any{
		"email": "a@b.com", "client_id": "widget-1",
	}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	// Different payload, same client id.
	_, err := svc.Submit(ctx, domain.FormNewsletter, map[string]any{
		"email": "other@b.com", "client_id": "widget-1",
	})
	var derr *DuplicateError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DuplicateError on client id, got %v", err)
	}
}

func TestSubmit_DedupWindowExpiry(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)
	svc.DedupTTL = time.Hour
	ctx := context.Background()
	raw := map[string]any{"email": "a@b.com", "source": "web"}

	first, err := svc.Submit(ctx, domain.FormNewsletter, raw)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	// Age the first record beyond the window.
	if err := db.Model(&domain.Submission{}).Where("id = ?", first.Submission.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}

	second, err := svc.Submit(ctx, domain.FormNewsletter, raw)
	if err != nil {
		t.Fatalf("re-submission after window should be accepted: %v", err)
	}
	if second.Submission.ID == first.Submission.ID {
		t.Fatalf("expected a new record")
	}

	total, _ := repo.CountSubmissions(ctx, db, domain.FormNewsletter)
	if total != 2 {
		t.Fatalf("both records must be retained, got %d", total)
	}
}

func TestSubmit_ValidationFailurePersistsNothing(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, domain.FormContactSales, map[string]any{
		"full_name": "Ada Lovelace",
		// work_email and company_name missing
	})
	var verr *normalize.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	total, _ := repo.CountSubmissions(ctx, db, domain.FormContactSales)
	if total != 0 {
		t.Fatalf("rejected submission must not persist, got %d rows", total)
	}
}

func TestSubmit_UnknownFormType(t *testing.T) {
	db := newServiceDB(t)
	svc := newIngestService(db, nil)

	_, err := svc.Submit(context.Background(), "bug_report", map[string]any{"email": "a@b.com"})
	if !errors.Is(err, ErrUnknownForm) {
		t.Fatalf("expected ErrUnknownForm, got %v", err)
	}
}

func TestSubmit_ForwardingFailureStillSucceeds(t *testing.T) {
	db := newServiceDB(t)

	// A dashboard that always refuses.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fwd := forward.NewClient(config.DashboardConfig{
		BaseURL:     srv.URL,
		APIKey:      "k",
		Timeout:     time.Second,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	}, db)
	svc := newIngestService(db, fwd)

	res, err := svc.Submit(context.Background(), domain.FormDemoRequest, map[string]any{
		"full_name": "Ada Lovelace", "work_email": "ada@b.com", "company_name": "AE Ltd",
	})
	if err != nil {
		t.Fatalf("Submit must absorb forwarding failure: %v", err)
	}
	if res.Submission.ForwardingStatus != domain.ForwardingFailed {
		t.Fatalf("expected failed forwarding status, got %q", res.Submission.ForwardingStatus)
	}

	stored, _ := repo.GetSubmission(context.Background(), db, res.Submission.ID)
	if stored.ForwardingStatus != domain.ForwardingFailed {
		t.Fatalf("failed status not persisted: %q", stored.ForwardingStatus)
	}
}

func TestSubmit_ForwardingSuccessSetsExternalID(t *testing.T) {
	db := newServiceDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ext-9"}`)
	}))
	defer srv.Close()

	fwd := forward.NewClient(config.DashboardConfig{
		BaseURL:     srv.URL,
		APIKey:      "k",
		Timeout:     time.Second,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	}, db)
	svc := newIngestService(db, fwd)

	res, err := svc.Submit(context.Background(), domain.FormNewsletter, map[string]any{"email": "a@b.com"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Submission.ForwardingStatus != domain.ForwardingForwarded {
		t.Fatalf("expected forwarded, got %q", res.Submission.ForwardingStatus)
	}
	if res.Submission.ExternalID == nil || *res.Submission.ExternalID != "ext-9" {
		t.Fatalf("external id not propagated: %v", res.Submission.ExternalID)
	}
}
