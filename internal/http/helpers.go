package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"usd":       formatUSD,
		"percent":   formatPercent,
		"shortAddr": shortenAddress,
	}
}

// formatUSD formats a decimal USD amount with thousands separators
// (e.g. "$1,234,567.89").
func formatUSD(v decimal.Decimal) string {
	neg := v.IsNegative()
	s := v.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := "$" + b.String() + "." + fracPart
	if neg {
		return "-" + out
	}
	return out
}

// formatPercent renders a 0..1 share as a percentage (e.g. "42.5%").
func formatPercent(share decimal.Decimal) string {
	return share.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

// shortenAddress abbreviates a wallet address for display
// (0x1234...abcd). Short values pass through unchanged.
func shortenAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
