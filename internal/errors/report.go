package errors

import (
	"encoding/json"
	"errors"
)

// Report is the canonical structured error type for the AD core. All error
// builders return a *Report, wrapped as a ReportError (spec.md §7).
type Report struct {
	Schema   string         `json:"schema"`             // Always "adcore.error/v1"
	Code     string         `json:"code"`               // Error code (ADC001, ADC101, etc.)
	Phase    string         `json:"phase"`               // Phase: "driver", "walker", "dispatch"
	Message  string         `json:"message"`            // Human-readable message
	Function string         `json:"function,omitempty"` // Target function name, if known
	Variable string         `json:"variable,omitempty"` // Offending variable name, if known
	Data     map[string]any `json:"data,omitempty"`     // Structured data
	Fix      *Fix           `json:"fix,omitempty"`      // Suggested fix (optional)
}

// ReportError wraps a Report as an error
// This allows structured reports to survive errors.As() unwrapping
type ReportError struct {
	Rep *Report
}

// Error implements the error interface
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport attempts to extract a Report from an error chain
// Returns the Report and true if found, nil and false otherwise
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as a ReportError
// Call sites should return errors.WrapReport(report) to preserve structure
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// ToJSON converts a Report to JSON (deterministic, sorted keys)
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error

	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}

	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Fix represents a suggested remediation for a Report.
type Fix struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

const schemaVersion = "adcore.error/v1"

// NewPrecondition builds an ADC001-ADC004 report raised by the Driver (C1)
// before the reverse walk begins.
func NewPrecondition(code, function, message string) *Report {
	return &Report{
		Schema:   schemaVersion,
		Code:     code,
		Phase:    "driver",
		Function: function,
		Message:  message,
	}
}

// NewUnknownGradient builds an ADC101 report: an operator was encountered
// with no registered gradient rule while its output carried a live adjoint.
func NewUnknownGradient(function, op, variable string) *Report {
	return &Report{
		Schema:   schemaVersion,
		Code:     "ADC101",
		Phase:    "dispatch",
		Function: function,
		Variable: variable,
		Message:  "no gradient rule registered for operator " + op,
		Data:     map[string]any{"op": op},
	}
}

// NewShapeMismatch builds an ADC102 report: a gradient rule returned a
// partial whose structural type didn't match the corresponding argument.
func NewShapeMismatch(function, op, argVar, want, got string) *Report {
	return &Report{
		Schema:   schemaVersion,
		Code:     "ADC102",
		Phase:    "dispatch",
		Function: function,
		Variable: argVar,
		Message:  "gradient rule for " + op + " returned wrong structural type",
		Data:     map[string]any{"op": op, "want": want, "got": got},
	}
}

// NewInvariantViolation builds an ADC103 report for a violated internal
// invariant (I1-I5 of spec.md §3).
func NewInvariantViolation(function, invariant, message string) *Report {
	return &Report{
		Schema:   schemaVersion,
		Code:     "ADC103",
		Phase:    "walker",
		Function: function,
		Message:  message,
		Data:     map[string]any{"invariant": invariant},
	}
}
