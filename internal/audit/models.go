package audit

import "time"

// Operation names the registry operation an event describes.
type Operation string

const (
	OperationTable      Operation = "property_table"
	OperationValuations Operation = "valuations"
	OperationCall       Operation = "call"
	OperationHealth     Operation = "health"
)

// OutcomeSuccess is recorded for operations that returned a result. Failed
// operations record their registry failure kind instead.
const OutcomeSuccess = "success"

// Event records the outcome of one registry operation. It never carries
// fetched record content.
type Event struct {
	ID        string
	Timestamp time.Time
	RequestID string
	Operation Operation
	// BFENumber is 0 for operations not keyed by a property.
	BFENumber int64
	// Target is the gateway method and path for call events.
	Target   string
	Outcome  string
	Status   int // upstream HTTP status, 0 when none
	Duration time.Duration
}
