package assistant

import (
	"context"
	"fmt"
	"strings"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/google/uuid"
)

type sendFunc func(ctx context.Context, params *sdka2a.MessageSendParams) (any, error)

// A2AClient sends turns to an assistant exposed over the A2A JSON-RPC
// protocol. Credentials travel in message metadata under the same keys the
// JSON endpoint uses.
type A2AClient struct {
	url     string
	send    sendFunc
	destroy func() error
}

// NewA2AClient connects to the JSON-RPC endpoint at url.
func NewA2AClient(ctx context.Context, url string) (*A2AClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("a2a endpoint url is required")
	}
	client, err := a2aclient.NewFromEndpoints(ctx, []sdka2a.AgentInterface{
		{URL: url, Transport: sdka2a.TransportProtocolJSONRPC},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a client: %w", err)
	}
	return &A2AClient{
		url: url,
		send: func(ctx context.Context, params *sdka2a.MessageSendParams) (any, error) {
			return client.SendMessage(ctx, params)
		},
		destroy: client.Destroy,
	}, nil
}

// Close releases the underlying client.
func (c *A2AClient) Close() error {
	if c.destroy == nil {
		return nil
	}
	return c.destroy()
}

// Chat sends req as a single user message.
func (c *A2AClient) Chat(ctx context.Context, req Request) (Response, error) {
	metadata := map[string]any{
		"account_number": nil,
		"pin":            nil,
	}
	if req.AccountNumber != nil {
		metadata["account_number"] = *req.AccountNumber
	}
	if req.PIN != nil {
		metadata["pin"] = *req.PIN
	}
	msg := &sdka2a.Message{
		ID:       uuid.NewString(),
		Role:     sdka2a.MessageRole("user"),
		Parts:    sdka2a.ContentParts{&sdka2a.TextPart{Text: req.Message}},
		Metadata: metadata,
	}

	result, err := c.send(ctx, &sdka2a.MessageSendParams{Message: msg})
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return responseFromA2A(result)
}

func responseFromA2A(result any) (Response, error) {
	switch r := result.(type) {
	case *sdka2a.Message:
		return Response{Reply: optional(messageText(r))}, nil
	case *sdka2a.Task:
		text := ""
		if r.Status.Message != nil {
			text = messageText(r.Status.Message)
		}
		switch r.Status.State {
		case sdka2a.TaskStateFailed, sdka2a.TaskStateRejected:
			if text == "" {
				text = "Request failed"
			}
			return Response{Error: &text}, nil
		}
		if text == "" && len(r.History) > 0 {
			last := r.History[len(r.History)-1]
			if last != nil && last.Role != sdka2a.MessageRole("user") {
				text = messageText(last)
			}
		}
		return Response{Reply: optional(text)}, nil
	default:
		return Response{}, fmt.Errorf("%w: unexpected a2a result %T", ErrTransport, result)
	}
}

func messageText(msg *sdka2a.Message) string {
	parts := make([]string, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		if tp, ok := p.(*sdka2a.TextPart); ok {
			parts = append(parts, tp.Text)
		}
	}
	return strings.Join(parts, "\n")
}
