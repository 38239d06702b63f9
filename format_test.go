package kdbipc

import (
	"strings"
	"testing"
)

func TestStringRendersAtomsWithoutColor(t *testing.T) {
	SetDiagnosticColor(false)
	defer SetDiagnosticColor(false)

	tests := []struct {
		name string
		k    *K
		want string
	}{
		{"boolean true", NewBoolean(true), "1b"},
		{"boolean false", NewBoolean(false), "0b"},
		{"long", NewLong(42), "42"},
		{"symbol", NewSymbol("trade"), "`trade"},
		{"char", NewChar('Q'), "\"Q\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.k.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringRendersCompoundList(t *testing.T) {
	SetDiagnosticColor(false)
	defer SetDiagnosticColor(false)
	cl := NewCompoundList(NewLong(1), NewLong(2))
	got := cl.String()
	if !strings.Contains(got, "1") || !strings.Contains(got, "2") {
		t.Errorf("String() = %q, want it to contain both elements", got)
	}
}

func TestStringRendersTable(t *testing.T) {
	SetDiagnosticColor(false)
	defer SetDiagnosticColor(false)
	tbl, err := NewTable([]string{"sym"}, []*K{NewSymbolVector([]string{"AAPL"})})
	if err != nil {
		t.Fatal(err)
	}
	got := tbl.String()
	if !strings.Contains(got, "sym") || !strings.Contains(got, "AAPL") {
		t.Errorf("String() = %q, want it to mention column and value", got)
	}
}
