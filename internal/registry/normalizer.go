package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Row is one normalized table row. A key holding nil was delivered as null;
// fields absent from the map also serialize as null when selected.
type Row map[Field]any

// Table is the flattened form of a PropertyRecord.
type Table struct {
	PropertyID string
	BFENumber  BFE
	// RequestedBFE is the number the caller asked for. BFENumber may differ
	// when the registry reports its own value.
	RequestedBFE BFE
	Timestamp    time.Time
	Columns      Projection
	Rows         []Row
	// HasDetail is false when the record had neither units nor buildings.
	HasDetail bool
	// Warnings lists requested fields that were valid but absent from the data.
	Warnings []string
}

// MarshalJSON renders the rows as an array of objects whose keys follow
// Columns order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRow(&buf, t.Columns, row); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeRow(buf *bytes.Buffer, columns Projection, row Row) error {
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.String())
		if err != nil {
			return err
		}
		value, err := json.Marshal(row[col])
		if err != nil {
			return fmt.Errorf("marshal column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return nil
}

// Normalizer flattens property records into tables.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock sets the source of the row timestamp.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithNormalizerLogger sets the logger for projection warnings.
func WithNormalizerLogger(logger *slog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNormalizer builds a normalizer using the wall clock unless WithClock is given.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Normalize flattens record into rows. Units and buildings are crossed when
// both exist (units outer, buildings inner). requested is the BFE number the
// caller asked for and backs bfe_number when the registry omitted it.
// An empty projection selects the default catalog.
func (n *Normalizer) Normalize(record *PropertyRecord, requested BFE, projection Projection) *Table {
	if record == nil {
		record = &PropertyRecord{}
	}
	bfe := requested
	if record.BFENumber != nil {
		bfe = *record.BFENumber
	}
	stamp := n.now().UTC()

	rows := combine(record.Units, record.Buildings)
	timestamp := stamp.Format(time.RFC3339Nano)
	for _, row := range rows {
		row[FieldPropertyID] = record.ID
		row[FieldBFENumber] = bfe
		row[FieldTimestamp] = timestamp
	}

	present := presentColumns(rows)
	columns, missing := selectColumns(projection, present)
	table := &Table{
		PropertyID:   record.ID,
		BFENumber:    bfe,
		RequestedBFE: requested,
		Timestamp:    stamp,
		Columns:      columns,
		Rows:         rows,
		HasDetail:    len(record.Units) > 0 || len(record.Buildings) > 0,
	}
	for _, f := range missing {
		msg := fmt.Sprintf("requested field %s is not present in the data for BFE %s", f, bfe)
		table.Warnings = append(table.Warnings, msg)
		n.logger.Warn("requested field not present", "field", f.String(), "bfe_number", bfe.String())
	}
	return table
}

func combine(units []Unit, buildings []Building) []Row {
	switch {
	case len(units) > 0 && len(buildings) > 0:
		rows := make([]Row, 0, len(units)*len(buildings))
		for _, u := range units {
			for _, b := range buildings {
				row := unitRow(u)
				row[FieldBuildingID] = b.ID
				rows = append(rows, row)
			}
		}
		return rows
	case len(units) > 0:
		rows := make([]Row, 0, len(units))
		for _, u := range units {
			rows = append(rows, unitRow(u))
		}
		return rows
	case len(buildings) > 0:
		rows := make([]Row, 0, len(buildings))
		for _, b := range buildings {
			rows = append(rows, Row{FieldBuildingID: b.ID})
		}
		return rows
	default:
		return []Row{{}}
	}
}

func unitRow(u Unit) Row {
	row := Row{FieldUnitID: u.ID}
	set := func(f Field, v any) {
		if v != nil || u.Null[f] {
			row[f] = v
		}
	}
	set(FieldUnitStatus, u.Status)
	set(FieldUnitUsage, u.UsageCode)
	set(FieldUnitAreaTotal, u.AreaTotal)
	set(FieldUnitAreaResidential, u.AreaResidential)
	set(FieldUnitAreaCommercial, u.AreaCommercial)
	set(FieldUnitRooms, u.RoomCount)
	return row
}

// presentColumns reports the fields some row carries, null values included.
func presentColumns(rows []Row) map[Field]bool {
	present := make(map[Field]bool, len(defaultFields))
	for _, row := range rows {
		for f := range row {
			present[f] = true
		}
	}
	return present
}

// selectColumns applies the projection to the present columns. When the
// projection is empty or selects nothing present, the default catalog is used.
// missing lists requested fields that were dropped for lack of data.
func selectColumns(projection Projection, present map[Field]bool) (columns Projection, missing Projection) {
	seen := make(map[Field]bool, len(projection))
	for _, f := range projection {
		if !f.Valid() || seen[f] {
			continue
		}
		seen[f] = true
		if present[f] {
			columns = append(columns, f)
		} else {
			missing = append(missing, f)
		}
	}
	if len(columns) > 0 {
		return columns, missing
	}
	for _, f := range defaultFields {
		if present[f] {
			columns = append(columns, f)
		}
	}
	return columns, missing
}
