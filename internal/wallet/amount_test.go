package wallet

import (
	"errors"
	"math/big"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
		err      bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"0.5", 18, "500000000000000000", false},
		{"1.000001", 6, "1000001", false},
		{"123.45", 2, "12345", false},
		{"0.0000001", 6, "", true},
		{"0", 18, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
	}

	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		if tt.err {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ToBaseUnits(%q): expected ErrInvalidAmount, got %v", tt.amount, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ToBaseUnits(%q): %v", tt.amount, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestFromBaseUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FromBaseUnits(v, 18).String(); got != "1.5" {
		t.Errorf("Expected 1.5, got %s", got)
	}
	if !FromBaseUnits(nil, 18).IsZero() {
		t.Errorf("nil should be zero")
	}
}
