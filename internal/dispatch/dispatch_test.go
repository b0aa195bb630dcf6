package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"bankchat/internal/assistant"
	"bankchat/internal/session"
)

type fakeClient struct {
	mu       sync.Mutex
	requests []assistant.Request
	replies  []assistant.Response
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeClient) Chat(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var resp assistant.Response
	if len(f.replies) > 0 {
		resp = f.replies[0]
		f.replies = f.replies[1:]
	}
	err := f.err
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return resp, err
}

func (f *fakeClient) calls() []assistant.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assistant.Request(nil), f.requests...)
}

func reply(s string) assistant.Response { return assistant.Response{Reply: &s} }

func newTestDispatcher(client *fakeClient, handshake Handshake) *Dispatcher {
	return New(session.NewStore(), client, handshake, nil)
}

func texts(snap session.Snapshot) []string {
	out := make([]string, 0, len(snap.Transcript))
	for _, m := range snap.Transcript {
		out = append(out, string(m.Sender)+": "+m.Text)
	}
	return out
}

func TestLoginSendsOneControlTurn(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{reply("PIN verified. Hello Asha! 😊")}}
	d := newTestDispatcher(client, HandshakeExplicit)

	if err := d.Login(context.Background(), "ABC1234", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	calls := client.calls()
	if len(calls) != 1 {
		t.Fatalf("requests = %d, want 1", len(calls))
	}
	req := calls[0]
	if req.Message != ControlToken || assistant.Text(req.AccountNumber) != "ABC1234" || assistant.Text(req.PIN) != "1234" {
		t.Fatalf("unexpected request: %+v", req)
	}

	snap := d.Store().Get()
	if !snap.Verified || snap.DisplayName != "Asha" {
		t.Fatalf("unexpected state: %+v", snap)
	}
	want := []string{"user: " + LoginAttemptText, "bot: PIN verified. Hello Asha! 😊"}
	if got := texts(snap); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("transcript = %v, want %v", got, want)
	}
	for _, m := range snap.Transcript {
		if strings.Contains(m.Text, ControlToken) {
			t.Fatalf("control token leaked: %q", m.Text)
		}
	}
	if snap.Busy {
		t.Fatal("busy flag left set")
	}
}

func TestLoginRejectsMalformedCredentials(t *testing.T) {
	tests := []struct {
		account, pin string
		want         error
	}{
		{"abc1234", "1234", ErrInvalidAccountNumber},
		{"ABC123", "1234", ErrInvalidAccountNumber},
		{"ABC1234", "12a4", ErrInvalidPIN},
		{"ABC1234", "", ErrInvalidPIN},
	}
	for _, tt := range tests {
		client := &fakeClient{}
		d := newTestDispatcher(client, HandshakeExplicit)
		err := d.Login(context.Background(), tt.account, tt.pin)
		if !errors.Is(err, tt.want) {
			t.Errorf("Login(%q, %q) = %v, want %v", tt.account, tt.pin, err, tt.want)
		}
		if len(client.calls()) != 0 {
			t.Errorf("Login(%q, %q) sent a request", tt.account, tt.pin)
		}
		if n := len(d.Store().Get().Transcript); n != 0 {
			t.Errorf("Login(%q, %q) changed transcript (%d)", tt.account, tt.pin, n)
		}
	}
}

func TestLoginAfterVerification(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{reply("PIN verified")}}
	d := newTestDispatcher(client, HandshakeExplicit)
	_ = d.Login(context.Background(), "ABC1234", "1234")
	if err := d.Login(context.Background(), "ABC1234", "1234"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("second Login = %v, want ErrAlreadyVerified", err)
	}
}

func TestFailedLoginCanRetry(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{reply("Incorrect PIN ❌ Try again"), reply("PIN verified. Hello Asha!")}}
	d := newTestDispatcher(client, HandshakeExplicit)
	_ = d.Login(context.Background(), "ABC1234", "0000")
	if d.Store().Get().Verified {
		t.Fatal("verified after incorrect PIN")
	}
	_ = d.Login(context.Background(), "ABC1234", "1234")
	snap := d.Store().Get()
	if !snap.Verified || snap.Credentials.PIN != "1234" {
		t.Fatalf("unexpected state: %+v", snap)
	}
}

func TestSubmitBlankIsNoop(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client, HandshakeExplicit)
	for _, text := range []string{"", "   ", "\t\n"} {
		if err := d.Submit(context.Background(), text, false); err != nil {
			t.Fatalf("Submit(%q) = %v", text, err)
		}
	}
	if len(client.calls()) != 0 || len(d.Store().Get().Transcript) != 0 {
		t.Fatal("blank submit had side effects")
	}
}

func TestSubmitBeforeVerificationSendsNoCredentials(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{{Error: strPtr("Please login first")}}}
	d := newTestDispatcher(client, HandshakeExplicit)
	d.Store().SetCredentials("ABC1234", "1234")

	if err := d.Submit(context.Background(), "  Check my balance  ", false); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req := client.calls()[0]
	if req.Message != "Check my balance" || req.AccountNumber != nil || req.PIN != nil {
		t.Fatalf("unexpected request: %+v", req)
	}
	want := []string{"user: Check my balance", "bot: Please login first"}
	if got := texts(d.Store().Get()); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("transcript = %v, want %v", got, want)
	}
}

func TestSubmitAfterVerificationAttachesCredentials(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{reply("PIN verified"), reply("💰 Your balance: ₹28,150")}}
	d := newTestDispatcher(client, HandshakeExplicit)
	_ = d.Login(context.Background(), "ABC1234", "1234")
	_ = d.Submit(context.Background(), "Check my balance", false)

	req := client.calls()[1]
	if assistant.Text(req.AccountNumber) != "ABC1234" || assistant.Text(req.PIN) != "1234" {
		t.Fatalf("credentials not attached: %+v", req)
	}
	snap := d.Store().Get()
	if !snap.HasBalance || snap.Balance != 28150 {
		t.Fatalf("balance = %d (%v), want 28150", snap.Balance, snap.HasBalance)
	}
}

func TestReplyResolution(t *testing.T) {
	tests := []struct {
		name string
		resp assistant.Response
		want string
	}{
		{"error wins", assistant.Response{Error: strPtr("Insufficient balance"), Reply: strPtr("ok")}, "Insufficient balance"},
		{"reply", assistant.Response{Reply: strPtr("➕ ₹100 deposited ✔")}, "➕ ₹100 deposited ✔"},
		{"empty error falls through", assistant.Response{Error: strPtr(""), Reply: strPtr("ok")}, "ok"},
		{"neither", assistant.Response{}, GenericFailureText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveReply(tt.resp); got != tt.want {
				t.Fatalf("resolveReply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportFailure(t *testing.T) {
	client := &fakeClient{err: assistant.ErrTransport}
	d := newTestDispatcher(client, HandshakeExplicit)
	d.Store().SetBalance(700)

	if err := d.Submit(context.Background(), "hello", false); err != nil {
		t.Fatalf("Submit returned %v, want nil", err)
	}
	snap := d.Store().Get()
	want := []string{"user: hello", "bot: " + ServerErrorText}
	if got := texts(snap); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("transcript = %v, want %v", got, want)
	}
	if snap.Busy || d.Busy() {
		t.Fatal("busy not cleared after failure")
	}
	if snap.Balance != 700 || snap.Verified {
		t.Fatalf("state changed on failure: %+v", snap)
	}
}

func TestTypedControlTokenIsDropped(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client, HandshakeExplicit)
	d.Store().SetCredentials("ABC1234", "1234")
	for _, text := range []string{"LOGIN_AUTH", " login_auth "} {
		if err := d.Submit(context.Background(), text, false); err != nil {
			t.Fatalf("Submit(%q) = %v", text, err)
		}
	}
	if len(client.calls()) != 0 || len(d.Store().Get().Transcript) != 0 {
		t.Fatal("typed control token was forwarded or shown")
	}
}

func TestControlTurnNeedsCredentials(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client, HandshakeExplicit)
	if err := d.Submit(context.Background(), ControlToken, true); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Submit = %v, want ErrMissingCredentials", err)
	}
	if len(client.calls()) != 0 {
		t.Fatal("control turn sent without credentials")
	}
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	client := &fakeClient{
		replies: []assistant.Response{reply("first")},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	d := newTestDispatcher(client, HandshakeExplicit)

	done := make(chan error, 1)
	go func() { done <- d.Submit(context.Background(), "first", false) }()
	<-client.started

	if !d.Busy() || !d.Store().Get().Busy {
		t.Fatal("busy flag not visible while awaiting reply")
	}
	if err := d.Submit(context.Background(), "second", false); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit = %v, want ErrBusy", err)
	}
	if err := d.Login(context.Background(), "ABC1234", "1234"); !errors.Is(err, ErrBusy) {
		t.Fatalf("Login while busy = %v, want ErrBusy", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	want := []string{"user: first", "bot: first"}
	if got := texts(d.Store().Get()); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("transcript = %v, want %v", got, want)
	}
	if d.Busy() {
		t.Fatal("slot not released")
	}
}

func TestIncrementalHandshake(t *testing.T) {
	client := &fakeClient{replies: []assistant.Response{
		reply("Account found. Please enter your PIN."),
		reply("PIN verified. Hello Asha!"),
		reply("💰 Your balance: ₹1,250"),
	}}
	d := newTestDispatcher(client, HandshakeIncremental)

	if err := d.Login(context.Background(), "ABC1234", "1234"); !errors.Is(err, ErrHandshakeMode) {
		t.Fatalf("Login = %v, want ErrHandshakeMode", err)
	}

	_ = d.Submit(context.Background(), "ABC1234", false)
	_ = d.Submit(context.Background(), "4321", false)
	_ = d.Submit(context.Background(), "Check my balance", false)

	calls := client.calls()
	if calls[0].AccountNumber != nil || calls[1].PIN != nil {
		t.Fatal("credentials attached before verification")
	}
	if assistant.Text(calls[2].AccountNumber) != "ABC1234" || assistant.Text(calls[2].PIN) != "4321" {
		t.Fatalf("credentials missing after verification: %+v", calls[2])
	}

	snap := d.Store().Get()
	if !snap.Verified || snap.DisplayName != "Asha" || snap.Balance != 1250 {
		t.Fatalf("unexpected state: %+v", snap)
	}
	for _, m := range snap.Transcript {
		if m.Text == "4321" {
			t.Fatal("PIN shown in transcript")
		}
	}
	if snap.Transcript[2].Text != "••••" {
		t.Fatalf("PIN turn shown as %q, want masked", snap.Transcript[2].Text)
	}
}

func strPtr(s string) *string { return &s }
