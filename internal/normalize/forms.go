// Package normalize implements the field normalizer: it coerces
// heterogeneous client payloads into canonical per-form-type records with a
// fixed field set, before anything is persisted or forwarded.
//
// Each form type is described by a FormSpec: which client field names map to
// which canonical names, which fields are required, and which fields get
// numeric or list-to-scalar coercion. The normalizer is a pure transform;
// applying it to an already-canonical record is a no-op.
package normalize

// FormSpec describes the canonical shape of one form type.
type FormSpec struct {
	// Aliases maps alternate client field names to canonical names
	// (e.g. "name" -> "full_name"). Canonical names map to themselves
	// implicitly.
	Aliases map[string]string
	// Required lists canonical fields that must be present and non-empty.
	Required []string
	// Optional lists canonical fields kept when present; missing optional
	// text fields default to "". Fields outside Required+Optional are
	// dropped from the canonical record.
	Optional []string
	// IntFields are discrete countable fields: non-integer numbers are
	// rounded to the nearest integer before storage/forwarding.
	IntFields []string
	// FloatFields are numeric fields stored as-is (parsed when strings).
	FloatFields []string
	// JoinFields are logically scalar fields that may arrive as a
	// collection; collections are joined with ListSeparator, order kept.
	JoinFields []string
	// Sensitive lists canonical fields masked by the status endpoint.
	Sensitive []string
	// DropOnStatus lists canonical fields removed entirely from status
	// endpoint output (e.g. resume URLs).
	DropOnStatus []string
	// RecentKey is the JSON key used for the recent-items list in the
	// status endpoint response ("recent_<plural>").
	RecentKey string
}

// ListSeparator joins collection values of JoinFields into one descriptive
// string, preserving order ("Morning, Afternoon").
const ListSeparator = ", "

// Specs holds the FormSpec for every canonical form type, keyed by the
// domain form type constants.
var Specs = map[string]FormSpec{
	"newsletter": {
		Aliases: map[string]string{
			"email_address": "email",
			"signup_source": "source",
		},
		Required:  []string{"email"},
		Optional:  []string{"source"},
		Sensitive: []string{"email"},
		RecentKey: "recent_signups",
	},
	"contact_sales": {
		Aliases: map[string]string{
			"name":    "full_name",
			"email":   "work_email",
			"company": "company_name",
		},
		Required:  []string{"full_name", "work_email", "company_name"},
		Optional:  []string{"phone", "message", "company_size"},
		IntFields: []string{"company_size"},
		Sensitive: []string{"work_email", "phone"},
		RecentKey: "recent_leads",
	},
	"demo_request": {
		Aliases: map[string]string{
			"name":    "full_name",
			"email":   "work_email",
			"company": "company_name",
		},
		Required:  []string{"full_name", "work_email", "company_name"},
		Optional:  []string{"use_case", "preferred_date"},
		Sensitive: []string{"work_email"},
		RecentKey: "recent_requests",
	},
	"roi_report": {
		Aliases: map[string]string{
			"email":   "work_email",
			"company": "company_name",
			"bundles": "bundle_count",
		},
		Required:    []string{"work_email", "company_name"},
		Optional:    []string{"bundle_count", "monthly_savings", "currency"},
		IntFields:   []string{"bundle_count"},
		FloatFields: []string{"monthly_savings"},
		Sensitive:   []string{"work_email"},
		RecentKey:   "recent_reports",
	},
	"job_application": {
		Aliases: map[string]string{
			"name":   "full_name",
			"role":   "position",
			"shifts": "preferred_shifts",
		},
		Required:     []string{"full_name", "email", "position"},
		Optional:     []string{"preferred_shifts", "years_experience", "resume_url"},
		IntFields:    []string{"years_experience"},
		JoinFields:   []string{"preferred_shifts"},
		Sensitive:    []string{"email"},
		DropOnStatus: []string{"resume_url"},
		RecentKey:    "recent_applications",
	},
}

// SpecFor returns the FormSpec for a canonical form type. The second return
// value is false for unknown types.
func SpecFor(formType string) (FormSpec, bool) {
	s, ok := Specs[formType]
	return s, ok
}
