// Package interpret recovers session facts from the assistant's prose
// replies. The assistant has no structured response contract, so every
// fact is pattern matched out of the reply text by a fixed rule table.
package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"bankchat/internal/session"
)

const (
	phraseVerified     = "pin verified"
	phraseAccountFound = "account found"
)

var (
	greetingPattern = regexp.MustCompile(`Hello\s([^!]+)!`)
	amountPattern   = regexp.MustCompile(`[₹$€£]([\d,]+)`)
)

// Update is one state change produced by a rule.
type Update interface {
	Apply(s *session.Store) bool
}

// SetVerified flips the session to verified, optionally carrying the greeting name.
type SetVerified struct {
	Name    string
	HasName bool
}

func (u SetVerified) Apply(s *session.Store) bool { return s.SetVerified(u.Name, u.HasName) }

// SetBalance records a balance seen in a reply.
type SetBalance struct {
	Amount int64
}

func (u SetBalance) Apply(s *session.Store) bool {
	s.SetBalance(u.Amount)
	return true
}

// SetCredentials stores credentials learned from an incremental handshake turn.
type SetCredentials struct {
	AccountNumber string
	PIN           string
}

func (u SetCredentials) Apply(s *session.Store) bool {
	return s.SetCredentials(u.AccountNumber, u.PIN)
}

// Input is everything a rule may look at.
type Input struct {
	Reply string
	Lower string
	State session.Snapshot
	// PrevUserText is the trimmed text of the turn this reply answers.
	PrevUserText string
}

// Rule extracts zero or one update from a reply.
type Rule struct {
	Name    string
	Extract func(in Input) (Update, bool)
}

// Interpreter applies its rules in order; every rule sees the same input.
type Interpreter struct {
	rules []Rule
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithIncrementalHandshake enables the rules that learn the account number
// and then the PIN from consecutive chat turns.
func WithIncrementalHandshake() Option {
	return func(i *Interpreter) {
		i.rules = append([]Rule{accountFoundRule, pinLearnedRule}, i.rules...)
	}
}

// New returns the default rule table: verification, then balance.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{rules: []Rule{verificationRule, balanceRule}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Rules returns the rule names in evaluation order.
func (i *Interpreter) Rules() []string {
	names := make([]string, 0, len(i.rules))
	for _, r := range i.rules {
		names = append(names, r.Name)
	}
	return names
}

// Interpret maps one reply to the updates it implies. Unrecognised replies
// yield an empty list.
func (i *Interpreter) Interpret(reply string, state session.Snapshot, prevUserText string) []Update {
	in := Input{
		Reply:        reply,
		Lower:        strings.ToLower(reply),
		State:        state,
		PrevUserText: strings.TrimSpace(prevUserText),
	}
	var updates []Update
	for _, r := range i.rules {
		if u, ok := r.Extract(in); ok {
			updates = append(updates, u)
		}
	}
	return updates
}

var verificationRule = Rule{
	Name: "verification",
	Extract: func(in Input) (Update, bool) {
		if !strings.Contains(in.Lower, phraseVerified) {
			return nil, false
		}
		name, ok := GreetingName(in.Reply)
		return SetVerified{Name: name, HasName: ok}, true
	},
}

var balanceRule = Rule{
	Name: "balance",
	Extract: func(in Input) (Update, bool) {
		amount, ok := ParseAmount(in.Reply)
		if !ok {
			return nil, false
		}
		return SetBalance{Amount: amount}, true
	},
}

// accountFoundRule only trusts the previous turn when it looks like an
// account number, so a stray message is never recorded as a credential.
var accountFoundRule = Rule{
	Name: "incremental-account",
	Extract: func(in Input) (Update, bool) {
		if in.State.Credentials.AccountNumber != "" {
			return nil, false
		}
		if !strings.Contains(in.Lower, phraseAccountFound) {
			return nil, false
		}
		if !session.ValidAccountNumber(in.PrevUserText) {
			return nil, false
		}
		return SetCredentials{AccountNumber: in.PrevUserText, PIN: in.State.Credentials.PIN}, true
	},
}

var pinLearnedRule = Rule{
	Name: "incremental-pin",
	Extract: func(in Input) (Update, bool) {
		creds := in.State.Credentials
		if creds.AccountNumber == "" || creds.PIN != "" {
			return nil, false
		}
		if !strings.Contains(in.Lower, phraseVerified) {
			return nil, false
		}
		if !session.ValidPIN(in.PrevUserText) {
			return nil, false
		}
		return SetCredentials{AccountNumber: creds.AccountNumber, PIN: in.PrevUserText}, true
	},
}

// GreetingName extracts X from the first "Hello X!" in reply.
func GreetingName(reply string) (string, bool) {
	m := greetingPattern.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// ParseAmount reads the first currency-marked integer in reply, e.g.
// "₹28,150" -> 28150. Only the first match is considered.
func ParseAmount(reply string) (int64, bool) {
	m := amountPattern.FindStringSubmatch(reply)
	if m == nil {
		return 0, false
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
