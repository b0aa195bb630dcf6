package session

import (
	"sync"
	"time"
)

// Snapshot is an immutable copy of the session state handed to readers.
type Snapshot struct {
	Credentials    Credentials
	Verified       bool
	DisplayName    string
	HasBalance     bool
	Balance        int64
	ActiveCategory Category
	Busy           bool
	Transcript     []Message
}

// AccountValid reports whether the stored account number is well-formed.
func (s Snapshot) AccountValid() bool { return ValidAccountNumber(s.Credentials.AccountNumber) }

// PINValid reports whether the stored PIN is well-formed.
func (s Snapshot) PINValid() bool { return ValidPIN(s.Credentials.PIN) }

// LastUserText returns the text of the most recent user message, if any.
func (s Snapshot) LastUserText() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Sender == SenderUser {
			return s.Transcript[i].Text
		}
	}
	return ""
}

// Store owns the state of one conversation. Every update is applied under
// the lock, so a reader never sees half of it.
type Store struct {
	mu      sync.RWMutex
	state   Snapshot
	now     func() time.Time
	changes chan struct{}
}

// NewStore creates an empty session on the Balance tab.
func NewStore() *Store {
	return &Store{
		state:   Snapshot{ActiveCategory: CategoryBalance, Transcript: []Message{}},
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
}

// SetClock replaces the time source used for message timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// Changes signals after each update. Signals coalesce; a reader should
// call Get after receiving one.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Get returns a snapshot of the current state.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	snap.Transcript = append([]Message(nil), s.state.Transcript...)
	return snap
}

// AppendMessage adds msg to the transcript. A zero SentAt is stamped with the store clock.
func (s *Store) AppendMessage(msg Message) {
	s.update(func(st *Snapshot) bool {
		if msg.SentAt.IsZero() {
			msg.SentAt = s.now()
		}
		st.Transcript = append(st.Transcript, msg)
		return true
	})
}

// SetVerified marks the session verified. Verification is one-way and is
// refused while the stored credentials are incomplete. When hasName is
// false an existing display name is kept.
func (s *Store) SetVerified(name string, hasName bool) bool {
	return s.update(func(st *Snapshot) bool {
		if !st.Credentials.Complete() {
			return false
		}
		st.Verified = true
		if hasName {
			st.DisplayName = name
		}
		return true
	})
}

// SetBalance records the last balance seen in a reply.
func (s *Store) SetBalance(amount int64) {
	s.update(func(st *Snapshot) bool {
		st.Balance = amount
		st.HasBalance = true
		return true
	})
}

// SetCredentials replaces both credential fields. It is refused once the
// session is verified.
func (s *Store) SetCredentials(account, pin string) bool {
	return s.update(func(st *Snapshot) bool {
		if st.Verified {
			return false
		}
		st.Credentials = Credentials{AccountNumber: account, PIN: pin}
		return true
	})
}

// SetAccountNumber updates the account field alone, as the login form does per keystroke.
func (s *Store) SetAccountNumber(account string) bool {
	return s.update(func(st *Snapshot) bool {
		if st.Verified {
			return false
		}
		st.Credentials.AccountNumber = account
		return true
	})
}

// SetPIN updates the PIN field alone.
func (s *Store) SetPIN(pin string) bool {
	return s.update(func(st *Snapshot) bool {
		if st.Verified {
			return false
		}
		st.Credentials.PIN = pin
		return true
	})
}

// SetActiveCategory switches the quick-command tab.
func (s *Store) SetActiveCategory(cat Category) {
	s.update(func(st *Snapshot) bool {
		st.ActiveCategory = cat
		return true
	})
}

// SetBusy toggles the awaiting-reply indicator.
func (s *Store) SetBusy(busy bool) {
	s.update(func(st *Snapshot) bool {
		if st.Busy == busy {
			return false
		}
		st.Busy = busy
		return true
	})
}

func (s *Store) update(fn func(st *Snapshot) bool) bool {
	s.mu.Lock()
	changed := fn(&s.state)
	s.mu.Unlock()
	if changed {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	}
	return changed
}
