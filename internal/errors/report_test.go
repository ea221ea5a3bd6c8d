package errors

import (
	"strings"
	"testing"
)

func TestWrapReportRoundTrip(t *testing.T) {
	rep := NewUnknownGradient("f_adjoint", "frobnicate", "l")
	err := WrapReport(rep)

	got, ok := AsReport(err)
	if !ok {
		t.Fatalf("AsReport failed to unwrap a wrapped *Report")
	}
	if got.Code != ADC101 {
		t.Errorf("Code = %s, want %s", got.Code, ADC101)
	}
	if !strings.Contains(err.Error(), "ADC101") {
		t.Errorf("Error() = %q, want it to mention the code", err.Error())
	}
}

func TestWrapReportNil(t *testing.T) {
	if err := WrapReport(nil); err != nil {
		t.Errorf("WrapReport(nil) = %v, want nil", err)
	}
}

func TestReportToJSON(t *testing.T) {
	rep := NewInvariantViolation("f_adjoint", "I2", "adjoint_var read before defining binding processed")
	js, err := rep.ToJSON(true)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(js, `"code":"ADC103"`) {
		t.Errorf("ToJSON output missing code field: %s", js)
	}
}
