// Package catalog holds the quick commands offered per category once a
// session is verified.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"bankchat/internal/session"
)

var (
	ErrNotVerified    = errors.New("quick commands are available after login")
	ErrUnknownCommand = errors.New("unknown quick command")
	ErrBusy           = errors.New("a reply is still pending")
)

// Command is one quick-command button: the label shown and the prompt sent.
type Command struct {
	Label  string `json:"label" yaml:"label"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Submitter runs a chat turn. The dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, text string, control bool) error
	Busy() bool
}

type Catalog struct {
	store    *session.Store
	submit   Submitter
	commands map[session.Category][]Command
}

// Default returns the built-in command table.
func Default() map[session.Category][]Command {
	return map[session.Category][]Command{
		session.CategoryBalance: {
			{Label: "Check balance", Prompt: "Check my balance"},
		},
		session.CategoryDeposit: {
			{Label: "+₹100", Prompt: "Deposit 100"},
			{Label: "+₹500", Prompt: "Deposit 500"},
			{Label: "+₹1000", Prompt: "Deposit 1000"},
		},
		session.CategoryWithdraw: {
			{Label: "₹100", Prompt: "Withdraw 100"},
			{Label: "₹200", Prompt: "Withdraw 200"},
			{Label: "₹500", Prompt: "Withdraw 500"},
		},
		session.CategoryTransfer: {
			{Label: "₹50 → ABC5678", Prompt: "Transfer 50 to ABC5678"},
			{Label: "₹100 → ABC5678", Prompt: "Transfer 100 to ABC5678"},
		},
		session.CategoryStatement: {
			{Label: "Mini Statement", Prompt: "Mini statement"},
			{Label: "Full history", Prompt: "Transaction history"},
		},
		session.CategorySmart: {
			{Label: "Spending insights", Prompt: "Where did I spend most this week?"},
			{Label: "Savings tips", Prompt: "Suggest how to save money"},
		},
	}
}

// New builds a catalog over the default table. A nil table means Default().
func New(store *session.Store, submit Submitter, table map[session.Category][]Command) *Catalog {
	if table == nil {
		table = Default()
	}
	return &Catalog{store: store, submit: submit, commands: table}
}

// Categories returns the tabs in display order.
func (c *Catalog) Categories() []session.Category {
	return append([]session.Category(nil), session.Categories...)
}

// Commands returns a copy of the commands for cat.
func (c *Catalog) Commands(cat session.Category) []Command {
	return append([]Command(nil), c.commands[cat]...)
}

// Select switches the active tab. It never touches the network.
func (c *Catalog) Select(cat session.Category) {
	c.store.SetActiveCategory(cat)
}

// Invoke submits the prompt of command index in cat as an ordinary chat turn.
func (c *Catalog) Invoke(ctx context.Context, cat session.Category, index int) error {
	if !c.store.Get().Verified {
		return ErrNotVerified
	}
	cmds := c.commands[cat]
	if index < 0 || index >= len(cmds) {
		return fmt.Errorf("%w: %s #%d", ErrUnknownCommand, cat, index+1)
	}
	if c.submit.Busy() {
		return ErrBusy
	}
	return c.submit.Submit(ctx, cmds[index].Prompt, false)
}
