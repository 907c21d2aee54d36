package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q expected validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestSignedAmount(t *testing.T) {
	fifty := decimal.NewFromInt(50)
	if got := SignedAmount(Expense, fifty); !got.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("expense: got %s, want -50", got)
	}
	if got := SignedAmount(Income, fifty); !got.Equal(fifty) {
		t.Errorf("income: got %s, want 50", got)
	}
	// Sign of the input magnitude is ignored.
	if got := SignedAmount(Income, fifty.Neg()); !got.Equal(fifty) {
		t.Errorf("income from negative input: got %s, want 50", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		part, whole string
		want        string
	}{
		{"half", "550", "1000", "55"},
		{"over budget is not clamped", "2500", "1000", "250"},
		{"negative part", "-500", "5000", "-10"},
		{"zero whole guards division", "10", "0", "0"},
		{"fractional", "1", "3", "33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percent(decimal.RequireFromString(tt.part), decimal.RequireFromString(tt.whole))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Percent(%s, %s) = %s, want %s", tt.part, tt.whole, got, tt.want)
			}
		})
	}
}
