package http

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"zero", "0", "$0.00"},
		{"small", "5.5", "$5.50"},
		{"rounding", "1234567.891", "$1,234,567.89"},
		{"thousands", "1000", "$1,000.00"},
		{"exact grouping", "123456", "$123,456.00"},
		{"negative", "-42.1", "-$42.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatUSD(decimal.RequireFromString(tt.input))
			if got != tt.want {
				t.Errorf("formatUSD(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0.0%"},
		{"0.425", "42.5%"},
		{"1", "100.0%"},
	}

	for _, tt := range tests {
		got := formatPercent(decimal.RequireFromString(tt.input))
		if got != tt.want {
			t.Errorf("formatPercent(%s) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestShortenAddress(t *testing.T) {
	long := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	short := shortenAddress(long)
	if short != "0x742d...f44e" {
		t.Errorf("shortenAddress(%s) = %s", long, short)
	}

	if got := shortenAddress("0xabc"); got != "0xabc" {
		t.Errorf("short address should pass through, got %s", got)
	}
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	if !strings.HasPrefix(id1, "req_") {
		t.Errorf("request ID %s should have req_ prefix", id1)
	}
	if id1 == id2 {
		t.Error("request IDs should be unique")
	}
}
