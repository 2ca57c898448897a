package utils

import (
	"reflect"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"btc", "BTC"},
		{"  eth ", "ETH"},
		{"$pepe", "PEPE"},
		{"RENDER", "RENDER"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSymbol(tt.input); got != tt.want {
			t.Errorf("NormalizeSymbol(%q): got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUniqueSymbols(t *testing.T) {
	got := UniqueSymbols([]string{"btc", "ETH", " ", "BTC", "$eth", "sol"})
	want := []string{"BTC", "ETH", "SOL"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueSymbols: got %v, want %v", got, want)
	}
}

func TestChunk(t *testing.T) {
	syms := []string{"A", "B", "C", "D", "E"}
	tests := []struct {
		size int
		want [][]string
	}{
		{1, [][]string{{"A"}, {"B"}, {"C"}, {"D"}, {"E"}}},
		{2, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}},
		{5, [][]string{syms}},
		{10, [][]string{syms}},
		{0, [][]string{syms}},
	}
	for _, tt := range tests {
		if got := Chunk(syms, tt.size); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Chunk(size=%d): got %v, want %v", tt.size, got, tt.want)
		}
	}
	if got := Chunk(nil, 3); got != nil {
		t.Errorf("Chunk(nil): got %v, want nil", got)
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
	}
	for _, tt := range tests {
		if got := FormatPct(tt.input); got != tt.want {
			t.Errorf("FormatPct(%v): got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{65000.123, "$65,000.12"},
		{1234567.5, "$1,234,567.50"},
		{999.999, "$1,000.00"},
		{12.5, "$12.50"},
		{0.00001234, "$0.00001234"},
		{0.5, "$0.5"},
		{0, "$0"},
		{-1500, "-$1,500.00"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.input); got != tt.want {
			t.Errorf("FormatUSD(%v): got %q, want %q", tt.input, got, tt.want)
		}
	}
}
