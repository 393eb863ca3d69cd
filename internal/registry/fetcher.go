package registry

import (
	"context"
	"fmt"
)

// Native unit attribute keys as delivered under bbr.units.
const (
	unitKeyID              = "id"
	unitKeyStatus          = "status"
	unitKeyUsage           = "enh020_unit_usage"
	unitKeyAreaTotal       = "enh026_area_unit_total"
	unitKeyAreaResidential = "enh027_area_residential"
	unitKeyAreaCommercial  = "enh028_area_commercial"
	unitKeyRooms           = "enh031_number_rooms"
)

// Fetcher retrieves full property records. The search response already
// carries the nested record, so a fetch costs a single round trip.
type Fetcher struct {
	resolver *Resolver
}

// NewFetcher builds a fetcher on top of a resolver.
func NewFetcher(resolver *Resolver) (*Fetcher, error) {
	if resolver == nil {
		return nil, newError(KindConfiguration, "fetch", "resolver is required", nil)
	}
	return &Fetcher{resolver: resolver}, nil
}

// Fetch returns the property record for bfe.
func (f *Fetcher) Fetch(ctx context.Context, bfe BFE) (*PropertyRecord, error) {
	raw, err := f.resolver.search(ctx, "fetch", bfe, RecordTimeout)
	if err != nil {
		return nil, err
	}
	return parseRecord(raw)
}

// parseRecord interprets a raw search result. Missing or null sub-collections
// are empty; anything else that is not the expected shape is a transform error.
func parseRecord(raw map[string]any) (*PropertyRecord, error) {
	id, ok := identifier(raw["id"])
	if !ok {
		return nil, transformError("record has no id")
	}
	record := &PropertyRecord{ID: id}

	if v, present := raw["bfe_number"]; present && v != nil {
		bfe, ok := bfeValue(v)
		if !ok {
			return nil, transformError(fmt.Sprintf("record %s has bfe_number %v, want a positive integer", id, v))
		}
		record.BFENumber = &bfe
	}

	var bbr map[string]any
	switch v := raw["bbr"].(type) {
	case nil:
	case map[string]any:
		bbr = v
	default:
		return nil, transformError(fmt.Sprintf("record %s: bbr is %s, not an object", id, jsonKind(v)))
	}

	units, err := objects(bbr, "units")
	if err != nil {
		return nil, err
	}
	for i, obj := range units {
		unitID, ok := identifier(obj[unitKeyID])
		if !ok {
			return nil, transformError(fmt.Sprintf("record %s: bbr.units[%d] has no id", id, i))
		}
		record.Units = append(record.Units, Unit{
			ID:              unitID,
			Status:          obj[unitKeyStatus],
			UsageCode:       obj[unitKeyUsage],
			AreaTotal:       obj[unitKeyAreaTotal],
			AreaResidential: obj[unitKeyAreaResidential],
			AreaCommercial:  obj[unitKeyAreaCommercial],
			RoomCount:       obj[unitKeyRooms],
			Null:            nullFields(obj),
		})
	}

	buildings, err := objects(bbr, "buildings")
	if err != nil {
		return nil, err
	}
	for i, obj := range buildings {
		buildingID, ok := identifier(obj["id"])
		if !ok {
			return nil, transformError(fmt.Sprintf("record %s: bbr.buildings[%d] has no id", id, i))
		}
		attrs := make(map[string]any, len(obj))
		for k, v := range obj {
			if k != "id" {
				attrs[k] = v
			}
		}
		record.Buildings = append(record.Buildings, Building{ID: buildingID, Attributes: attrs})
	}
	return record, nil
}

// unitAttributeFields maps native unit keys to their catalog field.
var unitAttributeFields = map[string]Field{
	unitKeyStatus:          FieldUnitStatus,
	unitKeyUsage:           FieldUnitUsage,
	unitKeyAreaTotal:       FieldUnitAreaTotal,
	unitKeyAreaResidential: FieldUnitAreaResidential,
	unitKeyAreaCommercial:  FieldUnitAreaCommercial,
	unitKeyRooms:           FieldUnitRooms,
}

// nullFields returns the unit attributes present in obj with a null value.
func nullFields(obj map[string]any) map[Field]bool {
	var null map[Field]bool
	for key, field := range unitAttributeFields {
		if v, ok := obj[key]; ok && v == nil {
			if null == nil {
				null = make(map[Field]bool)
			}
			null[field] = true
		}
	}
	return null
}

func objects(parent map[string]any, key string) ([]map[string]any, error) {
	raw, present := parent[key]
	if !present || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, transformError(fmt.Sprintf("bbr.%s is %s, not an array", key, jsonKind(raw)))
	}
	out := make([]map[string]any, 0, len(list))
	for i, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, transformError(fmt.Sprintf("bbr.%s[%d] is %s, not an object", key, i, jsonKind(elem)))
		}
		out = append(out, obj)
	}
	return out, nil
}

func transformError(message string) *Error {
	return newError(KindTransform, "fetch", message, nil)
}
