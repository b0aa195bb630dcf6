// Package assistant carries one chat turn to the remote banking assistant.
package assistant

import (
	"context"
	"errors"
)

// ErrTransport wraps every failure to obtain a decodable reply.
var ErrTransport = errors.New("assistant transport failure")

// Request is the outbound turn. Nil credentials are sent as JSON null.
type Request struct {
	Message       string  `json:"message"`
	AccountNumber *string `json:"account_number"`
	PIN           *string `json:"pin"`
}

// Response is the assistant's answer. Fields other than error and reply are ignored.
type Response struct {
	Error *string `json:"error,omitempty"`
	Reply *string `json:"reply,omitempty"`
}

// Client sends a turn and waits for the answer. Implementations do not retry.
type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}

// NewRequest builds a request, normalizing empty credential strings to nil.
func NewRequest(message, account, pin string) Request {
	return Request{Message: message, AccountNumber: optional(account), PIN: optional(pin)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Text returns s or "" when s is nil.
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
