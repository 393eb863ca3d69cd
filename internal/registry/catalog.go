package registry

import (
	"fmt"
	"strings"
)

// Field is a member of the closed catalog of normalized output columns.
// The zero value is not a valid field.
type Field uint8

const (
	FieldPropertyID Field = iota + 1
	FieldBFENumber
	FieldUnitID
	FieldUnitStatus
	FieldUnitUsage
	FieldUnitAreaTotal
	FieldUnitAreaResidential
	FieldUnitAreaCommercial
	FieldUnitRooms
	FieldBuildingID
	FieldTimestamp
)

var fieldNames = [...]string{
	FieldPropertyID:          "propertyId",
	FieldBFENumber:           "bfe_number",
	FieldUnitID:              "bbr.units.id",
	FieldUnitStatus:          "units.status",
	FieldUnitUsage:           "bbr.units.enh020_unit_usage",
	FieldUnitAreaTotal:       "bbr.units.enh026_area_unit_total",
	FieldUnitAreaResidential: "bbr.units.enh027_area_residential",
	FieldUnitAreaCommercial:  "bbr.units.enh028_area_commercial",
	FieldUnitRooms:           "bbr.units.enh031_number_rooms",
	FieldBuildingID:          "bbr.buildings.id",
	FieldTimestamp:           "timestamp",
}

// defaultFields is the catalog in output order.
var defaultFields = Projection{
	FieldPropertyID,
	FieldBFENumber,
	FieldUnitID,
	FieldUnitStatus,
	FieldUnitUsage,
	FieldUnitAreaTotal,
	FieldUnitAreaResidential,
	FieldUnitAreaCommercial,
	FieldUnitRooms,
	FieldBuildingID,
	FieldTimestamp,
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(defaultFields))
	for _, f := range defaultFields {
		m[fieldNames[f]] = f
	}
	return m
}()

// String returns the canonical column name.
func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
	return fieldNames[f]
}

// Valid reports whether f is a catalog member.
func (f Field) Valid() bool {
	return f >= FieldPropertyID && f <= FieldTimestamp
}

// MarshalText renders the canonical column name.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid field %d", uint8(f))
	}
	return []byte(fieldNames[f]), nil
}

// UnmarshalText accepts only catalog names.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseField resolves a canonical column name.
func ParseField(name string) (Field, error) {
	f, ok := fieldsByName[name]
	if !ok {
		return 0, newError(KindInvalidRequest, "projection", fmt.Sprintf("unknown output field %q", name), nil)
	}
	return f, nil
}

// Catalog returns every field in default output order.
func Catalog() Projection {
	return append(Projection(nil), defaultFields...)
}

// CatalogNames returns the canonical names in default output order.
func CatalogNames() []string {
	return defaultFields.Names()
}

// Projection is an ordered selection of catalog fields. An empty projection
// selects the default catalog.
type Projection []Field

// ParseProjection builds a projection from caller-supplied names. Blank names
// are skipped and duplicates keep their first position. Unknown names are
// rejected with an invalid_request error; the projection of the valid names is
// returned alongside it for callers that choose to proceed.
func ParseProjection(names []string) (Projection, error) {
	var (
		out     Projection
		unknown []string
		seen    = make(map[Field]bool, len(names))
	)
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		f, ok := fieldsByName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(unknown) > 0 {
		return out, newError(KindInvalidRequest, "projection",
			fmt.Sprintf("unknown output fields: %s (available: %s)",
				strings.Join(unknown, ", "), strings.Join(CatalogNames(), ", ")), nil)
	}
	return out, nil
}

// Names returns the canonical names of the projection.
func (p Projection) Names() []string {
	names := make([]string, 0, len(p))
	for _, f := range p {
		names = append(names, f.String())
	}
	return names
}

// Contains reports whether f is selected.
func (p Projection) Contains(f Field) bool {
	for _, candidate := range p {
		if candidate == f {
			return true
		}
	}
	return false
}
