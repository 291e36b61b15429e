package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Mode selects the conversation style and the qualification key set.
type Mode string

const (
	ModeSales   Mode = "sales"
	ModeSupport Mode = "support"
)

var qualificationKeys = map[Mode][]string{
	ModeSales:   {"business_type", "goal", "urgency", "budget_readiness", "role", "company", "pain_points"},
	ModeSupport: {"issue_type", "product", "severity", "account_id", "resolution"},
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := qualificationKeys[m]
	return ok
}

// QualificationKeys returns the fixed key set for the mode.
func (m Mode) QualificationKeys() []string {
	return slices.Clone(qualificationKeys[m])
}

// AllowsKey reports whether key belongs to the mode's key set.
func (m Mode) AllowsKey(key string) bool {
	return slices.Contains(qualificationKeys[m], key)
}

// Qualification maps field keys to extracted values. Keys with no value are
// absent rather than empty.
type Qualification map[string]string

// Clone returns an independent copy.
func (q Qualification) Clone() Qualification {
	out := make(Qualification, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// QualificationValue normalizes a decoded JSON value into its string form.
// Nulls, empty or whitespace-only strings and composite values yield ok=false.
func QualificationValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := QualificationValue(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	default:
		return fmt.Sprint(val), false
	}
}
