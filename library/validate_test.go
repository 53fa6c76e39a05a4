package library

import (
	"errors"
	"strings"
	"testing"
)

func TestParseYear(t *testing.T) {
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{"", nil, false},
		{"   ", nil, false},
		{"1965", intPtr(1965), false},
		{" 2001 ", intPtr(2001), false},
		{"MCMLXV", nil, true},
		{"19.5", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseYear(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("ParseYear(%q) error = %v, want invalid input", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseYear(%q): %v", tt.in, err)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Fatalf("ParseYear(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	if n, err := ParseQuantity(" 3 "); err != nil || n != 3 {
		t.Fatalf("ParseQuantity: %d, %v", n, err)
	}
	if _, err := ParseQuantity("three"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want invalid input, got %v", err)
	}
}

func TestValidateInputMessages(t *testing.T) {
	err := validateInput(&BookUpdate{Title: "", Author: "A", QtyTotal: 3, QtyAvailable: 5})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want invalid input, got %v", err)
	}
	for _, want := range []string{"title is required", "qty_available must not exceed qty_total"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("message %q missing %q", err.Error(), want)
		}
	}

	if err := validateInput(&BookInput{Title: "T", Author: "A", Qty: 1}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func intPtr(n int) *int { return &n }
