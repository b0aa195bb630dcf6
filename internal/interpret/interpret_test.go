package interpret

import (
	"reflect"
	"testing"

	"bankchat/internal/session"
)

func verifiedStore(t *testing.T) *session.Store {
	t.Helper()
	s := session.NewStore()
	s.SetCredentials("ABC1234", "1234")
	return s
}

func apply(s *session.Store, updates []Update) {
	for _, u := range updates {
		u.Apply(s)
	}
}

func TestInterpretReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []Update
	}{
		{
			name:  "verification with greeting and balance",
			reply: "Hello Asha! PIN Verified. Balance: ₹1,250",
			want:  []Update{SetVerified{Name: "Asha", HasName: true}, SetBalance{Amount: 1250}},
		},
		{
			name:  "backend login reply",
			reply: "PIN verified. Hello Asha Rao! 😊",
			want:  []Update{SetVerified{Name: "Asha Rao", HasName: true}},
		},
		{
			name:  "verification without name",
			reply: "PIN VERIFIED",
			want:  []Update{SetVerified{}},
		},
		{
			name:  "greeting alone does not verify",
			reply: "👋 Hello! How can I help with banking today?",
			want:  nil,
		},
		{
			name:  "thousands separators",
			reply: "💰 Your balance: ₹28,150",
			want:  []Update{SetBalance{Amount: 28150}},
		},
		{
			name:  "first amount wins",
			reply: "Sent ₹100 leaving ₹2,000",
			want:  []Update{SetBalance{Amount: 100}},
		},
		{
			name:  "symbol without digits",
			reply: "costs ₹, maybe",
			want:  nil,
		},
		{
			name:  "overflow is ignored",
			reply: "₹99999999999999999999999",
			want:  nil,
		},
		{
			name:  "unrecognised reply",
			reply: "🙇 I'm sorry, I can only help with banking-related services.",
			want:  nil,
		},
		{
			name:  "incorrect pin",
			reply: "Incorrect PIN ❌ Try again",
			want:  nil,
		},
	}

	in := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := in.Interpret(tt.reply, session.Snapshot{}, "")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Interpret(%q) = %#v, want %#v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestScenarioHelloAsha(t *testing.T) {
	s := verifiedStore(t)
	apply(s, New().Interpret("Hello Asha! PIN Verified. Balance: ₹1,250", s.Get(), "LOGIN_AUTH"))
	snap := s.Get()
	if !snap.Verified || snap.DisplayName != "Asha" || !snap.HasBalance || snap.Balance != 1250 {
		t.Fatalf("unexpected state: %+v", snap)
	}
}

func TestVerifiedStaysTrue(t *testing.T) {
	s := verifiedStore(t)
	in := New()
	apply(s, in.Interpret("pin verified", s.Get(), ""))
	for _, reply := range []string{"Incorrect PIN", "Please login first", "bye"} {
		apply(s, in.Interpret(reply, s.Get(), ""))
		if !s.Get().Verified {
			t.Fatalf("verified reset after %q", reply)
		}
	}
}

func TestBalanceUnchangedWithoutAmount(t *testing.T) {
	s := verifiedStore(t)
	in := New()
	apply(s, in.Interpret("Your balance: ₹500", s.Get(), ""))
	apply(s, in.Interpret("📭 No transactions found", s.Get(), ""))
	if got := s.Get().Balance; got != 500 {
		t.Fatalf("balance = %d, want 500", got)
	}
}

func TestIncrementalHandshake(t *testing.T) {
	s := session.NewStore()
	in := New(WithIncrementalHandshake())

	apply(s, in.Interpret("Account found. Please enter your PIN.", s.Get(), "ABC1234"))
	if got := s.Get().Credentials.AccountNumber; got != "ABC1234" {
		t.Fatalf("account = %q, want ABC1234", got)
	}

	apply(s, in.Interpret("PIN verified. Hello Asha!", s.Get(), "4321"))
	snap := s.Get()
	if snap.Credentials.PIN != "4321" || !snap.Verified || snap.DisplayName != "Asha" {
		t.Fatalf("unexpected state: %+v", snap)
	}
}

func TestIncrementalRejectsMalformedPreviousTurn(t *testing.T) {
	s := session.NewStore()
	in := New(WithIncrementalHandshake())

	apply(s, in.Interpret("Account found.", s.Get(), "hello there"))
	if got := s.Get().Credentials.AccountNumber; got != "" {
		t.Fatalf("account = %q, want empty", got)
	}

	s.SetCredentials("ABC1234", "")
	apply(s, in.Interpret("PIN verified.", s.Get(), "what is my pin"))
	snap := s.Get()
	if snap.Credentials.PIN != "" || snap.Verified {
		t.Fatalf("malformed PIN turn was trusted: %+v", snap)
	}
}

func TestExplicitModeIgnoresAccountFound(t *testing.T) {
	got := New().Interpret("Account found.", session.Snapshot{}, "ABC1234")
	if len(got) != 0 {
		t.Fatalf("explicit handshake produced %#v", got)
	}
}

func TestRuleOrder(t *testing.T) {
	want := []string{"incremental-account", "incremental-pin", "verification", "balance"}
	if got := New(WithIncrementalHandshake()).Rules(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Rules() = %v, want %v", got, want)
	}
}

func TestGreetingName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Hello Asha!", "Asha", true},
		{"Hello  Asha  !", "Asha", true},
		{"Hello !", "", false},
		{"Hi Asha!", "", false},
		{"Hello Asha", "", false},
	}
	for _, c := range cases {
		got, ok := GreetingName(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("GreetingName(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
