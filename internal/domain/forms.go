// Package domain defines the core persistence models for the gateway.
// This file declares the closed set of supported form types and the mapping
// from URL slugs (the spellings client forms actually use) to canonical
// form type names.
package domain

import "strings"

// Canonical form types accepted by the gateway. Payload shapes are validated
// per form type at the boundary; anything outside this set is rejected.
const (
	FormNewsletter     = "newsletter"
	FormContactSales   = "contact_sales"
	FormDemoRequest    = "demo_request"
	FormROIReport      = "roi_report"
	FormJobApplication = "job_application"
)

// FormTypes lists every canonical form type, in stable order.
var FormTypes = []string{
	FormNewsletter,
	FormContactSales,
	FormDemoRequest,
	FormROIReport,
	FormJobApplication,
}

// formSlugs maps the route slugs seen across client forms to canonical form
// types. Client-facing URLs are inconsistent (hyphens, plurals, legacy
// names) and the gateway accepts all known spellings.
var formSlugs = map[string]string{
	// newsletter
	"newsletter":        FormNewsletter,
	"newsletter-signup": FormNewsletter,
	"newsletter_signup": FormNewsletter,
	"subscriptions":     FormNewsletter,
	// contact sales
	"contact_sales": FormContactSales,
	"contact-sales": FormContactSales,
	// demo requests
	"demo_request":  FormDemoRequest,
	"demo-request":  FormDemoRequest,
	"demo_requests": FormDemoRequest,
	"demo-requests": FormDemoRequest,
	// ROI reports
	"roi_report":  FormROIReport,
	"roi-report":  FormROIReport,
	"roi_reports": FormROIReport,
	"roi-reports": FormROIReport,
	// job applications
	"job_application":  FormJobApplication,
	"job-application":  FormJobApplication,
	"job_applications": FormJobApplication,
	"job-applications": FormJobApplication,
}

// ParseFormType resolves a URL slug to a canonical form type. The second
// return value is false when the slug is unknown.
func ParseFormType(slug string) (string, bool) {
	ft, ok := formSlugs[strings.ToLower(strings.TrimSpace(slug))]
	return ft, ok
}

// ValidFormType reports whether ft is one of the canonical form types.
func ValidFormType(ft string) bool {
	for _, t := range FormTypes {
		if t == ft {
			return true
		}
	}
	return false
}
