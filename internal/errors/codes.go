// Package errors provides centralized error code definitions for the AD
// core's failure modes, following a consistent taxonomy for structured
// error reporting.
package errors

// Error code constants, one per error kind of spec.md §7. Every failure is
// synchronous and fatal to the differentiate() call that produced it; no
// partial output is ever returned alongside one.
const (
	// ============================================================================
	// Precondition errors (ADC0##) — raised by the Driver (C1) before the
	// reverse walk begins.
	// ============================================================================

	// ADC001 indicates the target name does not name a function in the module.
	ADC001 = "ADC001"

	// ADC002 indicates the target's body is not a single straight-line
	// block, or contains a construct the core does not support: control
	// flow, a non-VarRef Call/TupleCtor argument, or nested tuple
	// projection.
	ADC002 = "ADC002"

	// ADC003 indicates the target's return value is not a scalar tensor
	// of floating dtype.
	ADC003 = "ADC003"

	// ADC004 indicates a requested require_grads variable is not a
	// parameter of the target, or has no floating-dtype leaf.
	ADC004 = "ADC004"

	// ============================================================================
	// Transform errors (ADC1##) — raised during the reverse walk (C2-C6).
	// ============================================================================

	// ADC101 indicates a Call to an operator with no registered gradient
	// rule was encountered while it has nonzero adjoint contribution.
	ADC101 = "ADC101"

	// ADC102 indicates a gradient rule returned a partial whose
	// structural type differs from the corresponding argument.
	ADC102 = "ADC102"

	// ADC103 indicates an internal invariant (I1-I5 of spec.md §3) was
	// violated; this signals a bug in the core or in a gradient rule,
	// not a malformed input.
	ADC103 = "ADC103"
)

// ErrorInfo provides structured information about an error code.
type ErrorInfo struct {
	Code        string
	Phase       string
	Category    string
	Description string
}

// ErrorRegistry maps error codes to their information.
var ErrorRegistry = map[string]ErrorInfo{
	ADC001: {ADC001, "driver", "precondition", "Target is not a function"},
	ADC002: {ADC002, "driver", "precondition", "Unsupported function body"},
	ADC003: {ADC003, "driver", "precondition", "Return value is not a scalar float tensor"},
	ADC004: {ADC004, "driver", "precondition", "Invalid require_grads entry"},
	ADC101: {ADC101, "dispatch", "registry", "No gradient rule registered for operator"},
	ADC102: {ADC102, "dispatch", "shape", "Gradient rule partial shape mismatch"},
	ADC103: {ADC103, "walker", "invariant", "Internal invariant violation"},
}

// GetErrorInfo returns information about an error code.
func GetErrorInfo(code string) (ErrorInfo, bool) {
	info, exists := ErrorRegistry[code]
	return info, exists
}

// IsPreconditionError checks if the error code is a Driver precondition error.
func IsPreconditionError(code string) bool {
	info, exists := GetErrorInfo(code)
	return exists && info.Phase == "driver"
}

// IsInvariantError checks if the error code is an internal invariant violation.
func IsInvariantError(code string) bool {
	return code == ADC103
}
