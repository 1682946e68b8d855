package gate

import (
	"context"
	"sync"
)

// StatusFetcher queries the entitlement endpoint for a user.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, userID string) (bool, error)
}

// Session drives the gate for one client. Every entry into Checking triggers a fetch;
// results that arrive after a newer check or an identity change are discarded.
type Session struct {
	fetcher StatusFetcher

	mu     sync.Mutex
	state  State
	userID string
	gen    uint64
}

// NewSession creates a Session in the Unknown state.
func NewSession(fetcher StatusFetcher) *Session {
	return &Session{fetcher: fetcher}
}

// State returns the current gate state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsPlus reports whether premium features are shown.
func (s *Session) IsPlus() bool {
	return s.State() == Entitled
}

// SignIn records the identity and re-checks entitlement.
func (s *Session) SignIn(ctx context.Context, userID string) State {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	return s.Dispatch(ctx, Event{Kind: SignedIn})
}

// SignOut drops the identity; in-flight fetches are discarded.
func (s *Session) SignOut(ctx context.Context) State {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
	return s.Dispatch(ctx, Event{Kind: SignedOut})
}

// Navigate feeds a navigation URL to the gate, re-checking on a payment return.
func (s *Session) Navigate(ctx context.Context, rawURL string) State {
	ev, _, ok := ParseRedirect(rawURL)
	if !ok {
		return s.State()
	}
	return s.Dispatch(ctx, ev)
}

// Dispatch applies e and, when the machine enters Checking, fetches the status and
// applies the result.
func (s *Session) Dispatch(ctx context.Context, e Event) State {
	s.mu.Lock()
	s.state = Transition(s.state, e)
	entered := s.state == Checking && (e.Kind == SignedIn || e.Kind == PaymentReturned)
	// Each new check supersedes the fetch already in flight; only the latest applies.
	if entered || e.Kind == SignedOut {
		s.gen++
	}
	gen, userID, state := s.gen, s.userID, s.state
	s.mu.Unlock()

	if !entered {
		return state
	}

	entitled, err := s.fetcher.FetchStatus(ctx, userID)
	next := Resolved(entitled)
	if err != nil {
		next = Event{Kind: StatusFailed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.state
	}
	s.state = Transition(s.state, next)
	return s.state
}
