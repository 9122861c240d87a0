package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError names the field that could not be coerced or was missing.
// The whole submission is rejected; no partial record is ever produced.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// reservedKeys are transport-level keys clients may include in the body but
// which never belong to the canonical record (they feed the idempotency
// guard instead).
var reservedKeys = map[string]struct{}{
	"client_id":       {},
	"idempotency_key": {},
}

// Record applies the FormSpec for formType to a raw client payload and
// returns the canonical record:
//
//   - alternate field names are mapped to their canonical name
//   - discrete count fields are rounded to the nearest integer
//   - collection-valued scalar fields are joined with ListSeparator
//   - missing optional text fields default to ""
//   - fields outside the FormSpec (and reserved transport keys) are dropped
//
// A value that cannot be coerced yields a *ValidationError naming the
// offending field. Record is idempotent: feeding its output back in
// returns an equal record.
func Record(formType string, raw map[string]any) (map[string]any, error) {
	spec, ok := SpecFor(formType)
	if !ok {
		return nil, &ValidationError{Field: "form_type", Reason: "unknown form type " + formType}
	}

	// Canonicalize names first so coercion and requiredness see one name
	// per concept. Later aliases never overwrite an already-set canonical
	// field (the canonical spelling wins).
	canon := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		if target, aliased := spec.Aliases[key]; aliased {
			if _, exists := canon[target]; !exists {
				canon[target] = v
			}
			continue
		}
		canon[key] = v
	}

	out := make(map[string]any, len(spec.Required)+len(spec.Optional))

	keep := func(field string, required bool) error {
		v, present := canon[field]
		if !present || v == nil {
			if required {
				return &ValidationError{Field: field, Reason: "required field missing"}
			}
			if !isNumeric(spec, field) {
				out[field] = ""
			}
			return nil
		}

		switch {
		case contains(spec.IntFields, field):
			n, err := coerceInt(field, v)
			if err != nil {
				return err
			}
			out[field] = n
		case contains(spec.FloatFields, field):
			f, err := coerceFloat(field, v)
			if err != nil {
				return err
			}
			out[field] = f
		case contains(spec.JoinFields, field):
			s, err := coerceJoined(field, v)
			if err != nil {
				return err
			}
			out[field] = s
		default:
			s, err := coerceString(field, v)
			if err != nil {
				return err
			}
			if required && s == "" {
				return &ValidationError{Field: field, Reason: "required field empty"}
			}
			out[field] = s
		}
		return nil
	}

	for _, f := range spec.Required {
		if err := keep(f, true); err != nil {
			return nil, err
		}
	}
	for _, f := range spec.Optional {
		if err := keep(f, false); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// ClientKey extracts the optional client-supplied dedup key from a raw
// payload ("client_id" or "idempotency_key"). It returns "" when absent.
func ClientKey(raw map[string]any) string {
	for k := range reservedKeys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isNumeric(spec FormSpec, field string) bool {
	return contains(spec.IntFields, field) || contains(spec.FloatFields, field)
}

// coerceInt accepts ints, floats (rounded to nearest) and numeric strings.
func coerceInt(field string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(math.Round(n)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: "expected a number, got " + strconv.Quote(n)}
		}
		return int(math.Round(f)), nil
	default:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected a number, got %T", v)}
	}
}

// coerceFloat accepts ints, floats and numeric strings, stored unrounded.
func coerceFloat(field string, v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: "expected a number, got " + strconv.Quote(n)}
		}
		return f, nil
	default:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected a number, got %T", v)}
	}
}

// coerceJoined turns a collection into one descriptive string, preserving
// element order. A plain string passes through unchanged, so re-normalizing
// an already-joined value is a no-op.
func coerceJoined(field string, v any) (string, error) {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv), nil
	case []any:
		parts := make([]string, 0, len(vv))
		for _, el := range vv {
			s, err := coerceString(field, el)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ListSeparator), nil
	case []string:
		return strings.Join(vv, ListSeparator), nil
	default:
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("expected a string or list, got %T", v)}
	}
}

// coerceString accepts strings, numbers and booleans; anything structured is
// rejected so malformed nesting cannot leak into the canonical record.
func coerceString(field string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("expected a scalar value, got %T", v)}
	}
}
