package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BFE is a Danish property registration number (BFE-nummer).
//
// Invariants:
//   - Strictly positive
type BFE int64

// ParseBFE parses a decimal BFE number.
func ParseBFE(s string) (BFE, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, newError(KindInvalidRequest, "parse", fmt.Sprintf("invalid BFE number %q: must be a positive integer", s), nil)
	}
	return BFE(n), nil
}

// String returns the decimal form used in query strings.
func (b BFE) String() string {
	return strconv.FormatInt(int64(b), 10)
}

// IsZero returns true for the zero (unset) value.
func (b BFE) IsZero() bool {
	return b <= 0
}

// PropertyRecord is the nested property as returned by the registry search.
// It lives only for the duration of the call that fetched it.
type PropertyRecord struct {
	ID        string
	BFENumber *BFE // nil when the registry omits it
	Units     []Unit
	Buildings []Building
}

// Unit is a physical sub-division of a property (e.g. an apartment).
// Attribute values are carried verbatim from the registry; numbers stay
// json.Number so they serialize unchanged. A nil attribute was absent unless
// Null lists it.
type Unit struct {
	ID              string
	Status          any
	UsageCode       any
	AreaTotal       any
	AreaResidential any
	AreaCommercial  any
	RoomCount       any
	// Null holds the fields the registry delivered as an explicit null.
	Null map[Field]bool
}

// Building is a physical structure on the property. Only ID reaches the
// normalized table; Attributes keeps the remaining registry fields.
type Building struct {
	ID         string
	Attributes map[string]any
}

// identifier converts a JSON scalar id into its string form.
func identifier(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return "", false
	}
}

// bfeValue parses a registry-supplied bfe_number (number or numeric string).
func bfeValue(v any) (BFE, bool) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = n
	case float64:
		s = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return 0, false
	}
	b, err := ParseBFE(s)
	if err != nil {
		return 0, false
	}
	return b, true
}
