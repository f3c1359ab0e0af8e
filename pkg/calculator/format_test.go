package calculator

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{-2, "-2"},
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{2.5, "2.5"},
		{1.0 / 3, "0.33333333"},
		{2.999999999, "3"},
		{0.000000001, "0"},
		{-0.000000001, "-0"},
		{math.MaxInt32, "2147483647"},
		{math.MinInt32, "-2147483648"},
		{1e10, "10000000000"},
		{-1e10, "-10000000000"},
		{123.456, "123.456"},
		{0.123456785, "0.12345679"},
		{-0.123456785, "-0.12345679"},
		{0.999999996, "1"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.NaN(), "NaN"},
	}

	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{math.Copysign(0, -1), ""},
		{5, "M: 5"},
		{-4, "M: -4"},
		{2.5, "M: 2.50"},
		{-2.5, "M: -2.50"},
		{1.0 / 3, "M: 0.33"},
		{0.125, "M: 0.13"},
		{-0.125, "M: -0.13"},
		{1.005, "M: 1.01"},
		{0.995, "M: 1.00"},
		{9.995, "M: 10.00"},
		{0.004, "M: 0.00"},
		{1e10, "M: 10000000000.00"},
		{math.Inf(1), "M: Infinity"},
	}

	for _, tt := range tests {
		if got := FormatMemory(tt.in); got != tt.want {
			t.Errorf("FormatMemory(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFixed(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   string
	}{
		{2.5, 2, "2.50"},
		{2.675, 2, "2.68"},
		{99.95, 1, "100.0"},
		{0.5, 0, "1"},
		{1e-20, 2, "0.00"},
		{-1e-20, 2, "-0.00"},
	}

	for _, tt := range tests {
		if got := fixed(tt.in, tt.places); got != tt.want {
			t.Errorf("fixed(%v, %d) = %q, want %q", tt.in, tt.places, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"4.5", 4.5},
		{"0", 0},
		{"5.", 5},
		{".5", 0.5},
		{"-2", -2},
		{"", 0},
		{".", 0},
		{"Cannot divide by zero", 0},
	}

	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := Parse("1e400"); !math.IsInf(got, 1) {
		t.Errorf("Parse(1e400) = %v, want +Inf", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []string{"4.5", "0.25", "7", "-3", "10000000000", "0.12345678", "Infinity"} {
		if got := Format(Parse(s)); got != s {
			t.Errorf("Format(Parse(%q)) = %q", s, got)
		}
	}
}
