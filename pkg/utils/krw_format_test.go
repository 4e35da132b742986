package utils

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  72,300 ", "72,300"},
		{"430조\n\t\t1,234", "430조 1,234"},
		{"1,234 원", "1,234 원"},
		{"a&nbsp;b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.expected {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"72,300", 72300, true},
		{"72,300원", 72300, true},
		{"+1.69%", 1.69, true},
		{"-0.50", -0.5, true},
		{" 12.34배 ", 12.34, true},
		{"N/A", 0, false},
		{"-", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	if v, ok := ParseInt("12,345,678"); !ok || v != 12345678 {
		t.Errorf("ParseInt = %d, %v; want 12345678, true", v, ok)
	}
	if _, ok := ParseInt("1.5"); ok {
		t.Error("expected failure for fractional input")
	}
	if _, ok := ParseInt(" "); ok {
		t.Error("expected failure for blank input")
	}
}

func TestParseEokAmount(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"430조 1,234", 4301234, true},
		{"430조 1,234억원", 4301234, true},
		{"2조", 20000, true},
		{"9,876", 9876, true},
		{"조", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseEokAmount(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseEokAmount(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{72300, "72,300"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatThousands(tt.input); got != tt.expected {
				t.Errorf("FormatThousands(%d) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
	}
	for _, tt := range tests {
		if got := FormatPct(tt.input); got != tt.expected {
			t.Errorf("FormatPct(%f) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}
