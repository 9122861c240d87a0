package domain

import "testing"

func TestParseFormType(t *testing.T) {
	cases := map[string]string{
		"newsletter":        FormNewsletter,
		"newsletter-signup": FormNewsletter,
		"subscriptions":     FormNewsletter,
		"contact-sales":     FormContactSales,
		"demo_requests":     FormDemoRequest,
		"roi-reports":       FormROIReport,
		"job_applications":  FormJobApplication,
		"  Newsletter  ":    FormNewsletter, // trimmed and case-folded
	}
	for slug, want := range cases {
		got, ok := ParseFormType(slug)
		if !ok || got != want {
			t.Fatalf("ParseFormType(%q) = %q, %v; want %q", slug, got, ok, want)
		}
	}

	if _, ok := ParseFormType("bug-report"); ok {
		t.Fatalf("unknown slug should not resolve")
	}
}

func TestValidFormType(t *testing.T) {
	for _, ft := range FormTypes {
		if !ValidFormType(ft) {
			t.Fatalf("canonical type %q reported invalid", ft)
		}
	}
	if ValidFormType("newsletter-signup") {
		t.Fatalf("slugs are not canonical types")
	}
}
