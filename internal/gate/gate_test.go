package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		ev   Event
		want State
	}{
		{"sign in starts a check", Unknown, Event{Kind: SignedIn}, Checking},
		{"sign in from free re-checks", Free, Event{Kind: SignedIn}, Checking},
		{"sign out resets", Entitled, Event{Kind: SignedOut}, Unknown},
		{"resolved entitled", Checking, Resolved(true), Entitled},
		{"resolved free", Checking, Resolved(false), Free},
		{"failed check fails closed", Checking, Event{Kind: StatusFailed}, Free},
		{"payment return re-checks free user", Free, Event{Kind: PaymentReturned}, Checking},
		{"payment return re-checks entitled user", Entitled, Event{Kind: PaymentReturned}, Checking},
		{"payment return without identity", Unknown, Event{Kind: PaymentReturned}, Unknown},
		{"stale resolution ignored when free", Free, Resolved(true), Free},
		{"stale resolution ignored when signed out", Unknown, Resolved(true), Unknown},
		{"stale failure ignored", Entitled, Event{Kind: StatusFailed}, Entitled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Transition(tc.from, tc.ev))
		})
	}
}

func TestTransitionNeverEntitlesFromRedirect(t *testing.T) {
	for _, s := range []State{Unknown, Checking, Entitled, Free} {
		assert.NotEqual(t, Entitled, Transition(s, Event{Kind: PaymentReturned}), "from %s", s)
	}
}

func TestParseRedirect(t *testing.T) {
	ev, sessionID, ok := ParseRedirect("https://app.example/luna-plus?payment=success&session_id=cs_123")
	require.True(t, ok)
	assert.Equal(t, PaymentReturned, ev.Kind)
	assert.Equal(t, "cs_123", sessionID)

	_, _, ok = ParseRedirect("https://app.example/luna-plus?payment=cancelled")
	assert.False(t, ok)

	_, _, ok = ParseRedirect("https://app.example/chat")
	assert.False(t, ok)

	_, _, ok = ParseRedirect("://bad")
	assert.False(t, ok)
}

func TestPersonaPolicy(t *testing.T) {
	assert.True(t, Allowed("sweet", false))
	assert.True(t, Allowed("Flirty", false))
	assert.False(t, Allowed("Submissive", false))
	assert.False(t, Allowed(" seductive ", false))
	assert.True(t, Allowed("seductive", true))
	assert.True(t, Allowed("Luna", false))

	assert.False(t, Unlocked("submissive", Checking))
	assert.False(t, Unlocked("submissive", Free))
	assert.True(t, Unlocked("submissive", Entitled))
	assert.True(t, Unlocked("Sweet & Caring", Unknown))

	p, ok := Lookup("SWEET & CARING")
	require.True(t, ok)
	assert.Equal(t, "sweet", p.ID)
	assert.Len(t, Personas(), 4)
}

type stubFetcher struct {
	results []bool
	err     error
	calls   []string
	onFetch func()
}

func (f *stubFetcher) FetchStatus(_ context.Context, userID string) (bool, error) {
	f.calls = append(f.calls, userID)
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return false, f.err
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

func TestSessionPaymentReturnRefetches(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{results: []bool{false, false, true}}
	s := NewSession(f)

	assert.Equal(t, Free, s.SignIn(ctx, "u1"))

	// Webhook has not landed yet: the redirect alone does not entitle.
	assert.Equal(t, Free, s.Navigate(ctx, "https://app/luna-plus?payment=success&session_id=cs_1"))
	assert.False(t, s.IsPlus())

	assert.Equal(t, Entitled, s.Navigate(ctx, "https://app/luna-plus?payment=success&session_id=cs_1"))
	assert.True(t, s.IsPlus())
	assert.Equal(t, []string{"u1", "u1", "u1"}, f.calls)

	// Non-payment navigation does not query.
	s.Navigate(ctx, "https://app/chat")
	assert.Len(t, f.calls, 3)
}

func TestSessionFetchFailureFailsClosed(t *testing.T) {
	f := &stubFetcher{err: errors.New("network down")}
	s := NewSession(f)
	assert.Equal(t, Free, s.SignIn(context.Background(), "u1"))
}

func TestSessionDiscardsResultAfterSignOut(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{results: []bool{true}}
	s := NewSession(f)
	f.onFetch = func() {
		f.onFetch = nil
		s.SignOut(ctx)
	}

	s.SignIn(ctx, "u1")
	assert.Equal(t, Unknown, s.State())
}

type blockingFetcher struct {
	started chan chan bool
}

func (f *blockingFetcher) FetchStatus(context.Context, string) (bool, error) {
	reply := make(chan bool)
	f.started <- reply
	return <-reply, nil
}

func TestSessionPaymentReturnSupersedesPendingCheck(t *testing.T) {
	ctx := context.Background()
	f := &blockingFetcher{started: make(chan chan bool)}
	s := NewSession(f)

	signedIn := make(chan State, 1)
	go func() { signedIn <- s.SignIn(ctx, "u1") }()
	signInFetch := <-f.started

	rechecked := make(chan State, 1)
	go func() {
		rechecked <- s.Navigate(ctx, "https://app/luna-plus?payment=success&session_id=cs_1")
	}()
	recheckFetch := <-f.started

	// The sign-in fetch predates the webhook and lands first.
	signInFetch <- false
	assert.Equal(t, Checking, <-signedIn)

	recheckFetch <- true
	assert.Equal(t, Entitled, <-rechecked)
	assert.Equal(t, Entitled, s.State())
}
