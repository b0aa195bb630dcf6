package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns prefix-<16 hex>-<UTC timestamp>.
func NewID(prefix string) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return prefix + "-" + short + "-" + time.Now().UTC().Format("20060102150405")
}

// MaskPIN hides every PIN digit.
func MaskPIN(pin string) string {
	if pin == "" {
		return ""
	}
	return strings.Repeat("•", len([]rune(pin)))
}

// MaskAccount keeps the last two characters of an account number.
func MaskAccount(account string) string {
	r := []rune(account)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}
