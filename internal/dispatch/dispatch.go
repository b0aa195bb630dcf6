// Package dispatch runs chat turns against the assistant: it records the
// user's turn, attaches credentials only when allowed, feeds the reply to
// the interpreter and records the assistant's answer.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"bankchat/internal/assistant"
	"bankchat/internal/interpret"
	"bankchat/internal/session"
	"bankchat/internal/utils"
)

const (
	// ControlToken asks the assistant to verify the attached credentials.
	// It is never shown in the transcript.
	ControlToken = "LOGIN_AUTH"

	LoginAttemptText   = "Login Attempt"
	ServerErrorText    = "Server error. Please try again."
	GenericFailureText = "Something went wrong on the server."
)

var (
	ErrBusy                 = errors.New("a reply is still pending")
	ErrMissingCredentials   = errors.New("control turn requires account number and PIN")
	ErrInvalidAccountNumber = errors.New("invalid account format, expected ABC1234")
	ErrInvalidPIN           = errors.New("PIN must be exactly 4 digits")
	ErrAlreadyVerified      = errors.New("session already verified")
	ErrHandshakeMode        = errors.New("login form is disabled in incremental handshake mode")
)

// Handshake selects how a session gets its credentials.
type Handshake string

const (
	// HandshakeExplicit collects account and PIN in one login step and
	// verifies them with a control turn.
	HandshakeExplicit Handshake = "explicit"
	// HandshakeIncremental learns the account number and then the PIN from
	// consecutive chat turns answered with "account found" / "pin verified".
	HandshakeIncremental Handshake = "incremental"
)

type Dispatcher struct {
	store     *session.Store
	interp    *interpret.Interpreter
	client    assistant.Client
	logger    *utils.Logger
	handshake Handshake
	slot      chan struct{}
}

// New wires a dispatcher. The interpreter rule table follows the handshake.
func New(store *session.Store, client assistant.Client, handshake Handshake, logger *utils.Logger) *Dispatcher {
	if logger == nil {
		logger = utils.NewLogger("info", nil)
	}
	var opts []interpret.Option
	if handshake == HandshakeIncremental {
		opts = append(opts, interpret.WithIncrementalHandshake())
	} else {
		handshake = HandshakeExplicit
	}
	return &Dispatcher{
		store:     store,
		interp:    interpret.New(opts...),
		client:    client,
		logger:    logger,
		handshake: handshake,
		slot:      make(chan struct{}, 1),
	}
}

func (d *Dispatcher) Store() *session.Store { return d.store }

func (d *Dispatcher) Handshake() Handshake { return d.handshake }

// Busy reports whether a turn is in flight.
func (d *Dispatcher) Busy() bool {
	return len(d.slot) > 0
}

// Login validates the credentials locally and, when well-formed, runs the
// verification control turn. Malformed input sends nothing and adds nothing
// to the transcript.
func (d *Dispatcher) Login(ctx context.Context, account, pin string) error {
	if d.handshake != HandshakeExplicit {
		return ErrHandshakeMode
	}
	if d.store.Get().Verified {
		return ErrAlreadyVerified
	}
	if !session.ValidAccountNumber(account) {
		return ErrInvalidAccountNumber
	}
	if !session.ValidPIN(pin) {
		return ErrInvalidPIN
	}
	if !d.acquire() {
		return ErrBusy
	}
	defer d.release()

	d.store.SetCredentials(account, pin)
	d.store.AppendMessage(session.Message{Sender: session.SenderUser, Text: LoginAttemptText})
	d.logger.Infof("login attempt for account %s", utils.MaskAccount(account))
	d.runTurn(ctx, ControlToken, true)
	return nil
}

// Submit runs one chat turn. Blank text is ignored. Only ErrBusy and
// ErrMissingCredentials are returned; transport failures become a
// transcript message and are not propagated.
func (d *Dispatcher) Submit(ctx context.Context, text string, control bool) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if !control && strings.EqualFold(trimmed, ControlToken) {
		d.logger.Warnf("dropped control token typed as chat text")
		return nil
	}
	if control && !d.store.Get().Credentials.Complete() {
		return ErrMissingCredentials
	}
	if !d.acquire() {
		return ErrBusy
	}
	defer d.release()
	d.runTurn(ctx, trimmed, control)
	return nil
}

func (d *Dispatcher) acquire() bool {
	select {
	case d.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) release() {
	<-d.slot
}

// runTurn must be called with the slot held.
func (d *Dispatcher) runTurn(ctx context.Context, text string, control bool) {
	before := d.store.Get()
	if !control {
		d.store.AppendMessage(session.Message{Sender: session.SenderUser, Text: d.visibleText(before, text)})
	}

	d.store.SetBusy(true)
	defer d.store.SetBusy(false)

	req := assistant.NewRequest(text, "", "")
	if control || before.Verified {
		req = assistant.NewRequest(text, before.Credentials.AccountNumber, before.Credentials.PIN)
	}
	d.logger.Debugf("sending turn control=%t verified=%t account=%s", control, before.Verified,
		utils.MaskAccount(assistant.Text(req.AccountNumber)))

	resp, err := d.client.Chat(ctx, req)
	if err != nil {
		d.logger.Errorf("chat request failed: %v", err)
		d.store.AppendMessage(session.Message{Sender: session.SenderAssistant, Text: ServerErrorText})
		return
	}

	reply := resolveReply(resp)
	for _, u := range d.interp.Interpret(reply, d.store.Get(), text) {
		if !u.Apply(d.store) {
			d.logger.Debugf("update %T not applied", u)
		}
	}
	d.store.AppendMessage(session.Message{Sender: session.SenderAssistant, Text: reply})
}

// visibleText masks a PIN typed as chat text during the incremental handshake.
func (d *Dispatcher) visibleText(snap session.Snapshot, text string) string {
	if d.handshake != HandshakeIncremental || snap.Verified {
		return text
	}
	if snap.Credentials.AccountNumber != "" && snap.Credentials.PIN == "" && session.ValidPIN(text) {
		return utils.MaskPIN(text)
	}
	return text
}

func resolveReply(resp assistant.Response) string {
	if msg := assistant.Text(resp.Error); msg != "" {
		return msg
	}
	if msg := assistant.Text(resp.Reply); msg != "" {
		return msg
	}
	return GenericFailureText
}
