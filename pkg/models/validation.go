package models

// ValidationOutcome classifies the verification result for one row.
type ValidationOutcome string

const (
	OutcomeValid   ValidationOutcome = "valid"
	OutcomeInvalid ValidationOutcome = "invalid"
	OutcomeUnknown ValidationOutcome = "unknown"
	OutcomeError   ValidationOutcome = "error" // transport failure, timeout, or malformed response
)

// RowOutcome is the verification result attached to one projected row.
type RowOutcome struct {
	Row     int               `json:"row"` // index into the projected table before filtering
	Value   string            `json:"value"`
	Outcome ValidationOutcome `json:"outcome"`
	Detail  string            `json:"detail,omitempty"`
}

// ValidationReport records every row's outcome, including rows that were
// filtered out of the result.
type ValidationReport struct {
	Field    string       `json:"field"`
	Outcomes []RowOutcome `json:"outcomes"`
	Valid    int          `json:"valid"`
	Invalid  int          `json:"invalid"`
	Unknown  int          `json:"unknown"`
	Errored  int          `json:"errored"`
}

// Tally recomputes the per-outcome counters from Outcomes.
func (r *ValidationReport) Tally() {
	r.Valid, r.Invalid, r.Unknown, r.Errored = 0, 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Outcome {
		case OutcomeValid:
			r.Valid++
		case OutcomeInvalid:
			r.Invalid++
		case OutcomeUnknown:
			r.Unknown++
		default:
			r.Errored++
		}
	}
}

// Dropped returns how many rows were excluded from the output.
func (r *ValidationReport) Dropped() int {
	return len(r.Outcomes) - r.Valid
}
