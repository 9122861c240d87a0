package normalize

import (
	"errors"
	"testing"
)

func TestRecord_NewsletterAliasesAndDrops(t *testing.T) {
	raw := map[string]any{
		"email_address": "a@b.com",
		"signup_source": "web",
		"utm_campaign":  "spring", // outside spec, dropped
		"client_id":     "widget-1",
	}

	rec, err := Record("newsletter", raw)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec["email"] != "a@b.com" {
		t.Fatalf("alias email_address not mapped: %v", rec)
	}
	if rec["source"] != "web" {
		t.Fatalf("alias signup_source not mapped: %v", rec)
	}
	if _, ok := rec["utm_campaign"]; ok {
		t.Fatalf("off-spec field survived: %v", rec)
	}
	if _, ok := rec["client_id"]; ok {
		t.Fatalf("reserved transport key survived: %v", rec)
	}
}

func TestRecord_CanonicalSpellingWinsOverAlias(t *testing.T) {
	rec, err := Record("newsletter", map[string]any{
		"email":         "canonical@b.com",
		"email_address": "alias@b.com",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec["email"] != "canonical@b.com" {
		t.Fatalf("alias overwrote canonical value: %v", rec["email"])
	}
}

func TestRecord_RequiredFieldMissing(t *testing.T) {
	_, err := Record("contact_sales", map[string]any{
		"full_name": "Ada Lovelace",
		"company":   "Analytical Engines Ltd",
		// work_email missing
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Field != "work_email" {
		t.Fatalf("expected work_email flagged, got %q", verr.Field)
	}
}

func TestRecord_RequiredFieldEmpty(t *testing.T) {
	_, err := Record("newsletter", map[string]any{"email": "   "})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected empty required email rejected, got %v", err)
	}
}

func TestRecord_IntRounding(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{91.34, 91},
		{91.5, 92},
		{float64(200), 200},
		{"150", 150},
		{"149.6", 150},
		{42, 42},
	}
	for _, tc := range cases {
		rec, err := Record("roi_report", map[string]any{
			"work_email":   "ops@example.com",
			"company_name": "Example Co",
			"bundle_count": tc.in,
		})
		if err != nil {
			t.Fatalf("Record(%v): %v", tc.in, err)
		}
		if rec["bundle_count"] != tc.want {
			t.Fatalf("bundle_count %v: got %v, want %d", tc.in, rec["bundle_count"], tc.want)
		}
	}
}

func TestRecord_IntFieldNonNumeric(t *testing.T) {
	_, err := Record("roi_report", map[string]any{
		"work_email":   "ops@example.com",
		"company_name": "Example Co",
		"bundle_count": "a lot",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "bundle_count" {
		t.Fatalf("expected bundle_count rejected, got %v", err)
	}
}

func TestRecord_FloatFieldKeptUnrounded(t *testing.T) {
	rec, err := Record("roi_report", map[string]any{
		"work_email":      "ops@example.com",
		"company_name":    "Example Co",
		"monthly_savings": 1234.56,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec["monthly_savings"] != 1234.56 {
		t.Fatalf("monthly_savings altered: %v", rec["monthly_savings"])
	}
}

func TestRecord_JoinFieldFromList(t *testing.T) {
	rec, err := Record("job_application", map[string]any{
		"full_name":        "Grace Hopper",
		"email":            "grace@example.com",
		"position":         "barista",
		"preferred_shifts": []any{"Morning", "Afternoon"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec["preferred_shifts"] != "Morning, Afternoon" {
		t.Fatalf("join failed: %q", rec["preferred_shifts"])
	}
}

func TestRecord_Idempotent(t *testing.T) {
	first, err := Record("job_application", map[string]any{
		"name":             "Grace Hopper",
		"email":            "grace@example.com",
		"role":             "barista",
		"preferred_shifts": []any{"Morning", "Afternoon"},
		"years_experience": "7.2",
	})
	if err != nil {
		t.Fatalf("first Record: %v", err)
	}

	second, err := Record("job_application", first)
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("field sets differ: %v vs %v", first, second)
	}
	for k, v := range first {
		if second[k] != v {
			t.Fatalf("field %q changed on re-normalization: %v -> %v", k, v, second[k])
		}
	}
}

func TestRecord_StructuredValueRejected(t *testing.T) {
	_, err := Record("newsletter", map[string]any{
		"email": map[string]any{"nested": true},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected structured value rejected, got %v", err)
	}
}

func TestRecord_UnknownFormType(t *testing.T) {
	_, err := Record("bug_report", map[string]any{"email": "a@b.com"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestClientKey(t *testing.T) {
	if got := ClientKey(map[string]any{"client_id": " widget-7 "}); got != "widget-7" {
		t.Fatalf("client_id not extracted: %q", got)
	}
	if got := ClientKey(map[string]any{"idempotency_key": "k1"}); got != "k1" {
		t.Fatalf("idempotency_key not extracted: %q", got)
	}
	if got := ClientKey(map[string]any{"email": "a@b.com"}); got != "" {
		t.Fatalf("expected empty client key, got %q", got)
	}
	if got := ClientKey(map[string]any{"client_id": 42}); got != "" {
		t.Fatalf("non-string client key should be ignored, got %q", got)
	}
}
