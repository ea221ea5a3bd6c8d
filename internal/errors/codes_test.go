package errors

import (
	"testing"
)

func TestErrorCodeTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		phase    string
		category string
	}{
		{"ADC001", ADC001, "driver", "precondition"},
		{"ADC002", ADC002, "driver", "precondition"},
		{"ADC004", ADC004, "driver", "precondition"},
		{"ADC101", ADC101, "dispatch", "registry"},
		{"ADC102", ADC102, "dispatch", "shape"},
		{"ADC103", ADC103, "walker", "invariant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, exists := GetErrorInfo(tt.code)
			if !exists {
				t.Errorf("Error code %s not found in registry", tt.code)
				return
			}

			if info.Code != tt.code {
				t.Errorf("Code mismatch: got %s, want %s", info.Code, tt.code)
			}

			if info.Phase != tt.phase {
				t.Errorf("Phase mismatch for %s: got %s, want %s", tt.code, info.Phase, tt.phase)
			}

			if info.Category != tt.category {
				t.Errorf("Category mismatch for %s: got %s, want %s", tt.code, info.Category, tt.category)
			}
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	if !IsPreconditionError(ADC001) {
		t.Errorf("IsPreconditionError(%s) = false, want true", ADC001)
	}
	if IsPreconditionError(ADC101) {
		t.Errorf("IsPreconditionError(%s) = true, want false", ADC101)
	}
	if !IsInvariantError(ADC103) {
		t.Errorf("IsInvariantError(%s) = false, want true", ADC103)
	}
	if IsInvariantError(ADC001) {
		t.Errorf("IsInvariantError(%s) = true, want false", ADC001)
	}
}

func TestAllErrorCodesInRegistry(t *testing.T) {
	allCodes := []string{ADC001, ADC002, ADC003, ADC004, ADC101, ADC102, ADC103}

	for _, code := range allCodes {
		t.Run(code, func(t *testing.T) {
			if _, exists := GetErrorInfo(code); !exists {
				t.Errorf("Error code %s is defined but not in registry", code)
			}
		})
	}

	if len(ErrorRegistry) != len(allCodes) {
		t.Errorf("Registry has %d codes, expected exactly %d", len(ErrorRegistry), len(allCodes))
	}
}

func TestErrorInfoConsistency(t *testing.T) {
	validPhases := map[string]bool{"driver": true, "dispatch": true, "walker": true}

	for code, info := range ErrorRegistry {
		if info.Code != code {
			t.Errorf("Code mismatch in registry: key=%s, info.Code=%s", code, info.Code)
		}
		if len(code) != 6 {
			t.Errorf("Invalid code format: %s", code)
		}
		if !validPhases[info.Phase] {
			t.Errorf("Invalid phase for %s: %s", code, info.Phase)
		}
		if info.Description == "" {
			t.Errorf("Empty description for %s", code)
		}
	}
}
