package gate

import (
	"net/url"
)

// ParseRedirect inspects a navigation URL for the payment return marker. It reports
// PaymentReturned for payment=success; cancelled or absent markers produce no event.
// The checkout session id, when present, is returned for display or logging only.
func ParseRedirect(raw string) (ev Event, sessionID string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return Event{}, "", false
	}
	q := u.Query()
	if q.Get("payment") != "success" {
		return Event{}, "", false
	}
	return Event{Kind: PaymentReturned}, q.Get("session_id"), true
}
