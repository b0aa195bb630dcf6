package session

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Sender identifies who produced a transcript message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "bot"
)

// Message is one transcript entry. It is held by value and never mutated.
type Message struct {
	Sender Sender    `json:"from" yaml:"from"`
	Text   string    `json:"text" yaml:"text"`
	SentAt time.Time `json:"time" yaml:"time"`
}

// Credentials are filled in by the login form or, in the incremental
// handshake, one field at a time from consecutive chat turns.
type Credentials struct {
	AccountNumber string
	PIN           string
}

// Complete reports whether both fields are present and well-formed.
func (c Credentials) Complete() bool {
	return ValidAccountNumber(c.AccountNumber) && ValidPIN(c.PIN)
}

// Category is a quick-command tab.
type Category string

const (
	CategoryBalance   Category = "Balance"
	CategoryDeposit   Category = "Deposit"
	CategoryWithdraw  Category = "Withdraw"
	CategoryTransfer  Category = "Transfer"
	CategoryStatement Category = "Statement"
	CategorySmart     Category = "Smart"
)

// Categories lists the tabs in display order.
var Categories = []Category{
	CategoryBalance,
	CategoryDeposit,
	CategoryWithdraw,
	CategoryTransfer,
	CategoryStatement,
	CategorySmart,
}

// ParseCategory matches a tab name case-insensitively.
func ParseCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

var (
	accountPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{4}$`)
)

// ValidAccountNumber checks the ABC1234 shape: three uppercase letters and four digits.
func ValidAccountNumber(s string) bool {
	return accountPattern.MatchString(s)
}

// ValidPIN checks for exactly four digits.
func ValidPIN(s string) bool {
	return pinPattern.MatchString(s)
}

// NormalizeAccountInput upper-cases typed account input and caps it at seven characters.
func NormalizeAccountInput(s string) string {
	s = strings.ToUpper(s)
	r := []rune(s)
	if len(r) > 7 {
		r = r[:7]
	}
	return string(r)
}

// NormalizePINInput drops non-digits and caps the result at four characters.
func NormalizePINInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			continue
		}
		if b.Len() == 4 {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
