package gate

import "strings"

// Persona is one selectable chat character.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Premium personas require an entitlement.
	Premium bool `json:"premium"`
}

var catalog = []Persona{
	{ID: "sweet", Name: "Sweet & Caring", Description: "Warm, supportive and always there for you.", Premium: false},
	{ID: "flirty", Name: "Flirty", Description: "Playful and teasing.", Premium: false},
	{ID: "submissive", Name: "Submissive", Description: "Eager to please.", Premium: true},
	{ID: "seductive", Name: "Seductive", Description: "Bold and alluring.", Premium: true},
}

// Personas returns a copy of the persona catalog in display order.
func Personas() []Persona {
	out := make([]Persona, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a persona by id or display name, ignoring case and surrounding space.
func Lookup(label string) (Persona, bool) {
	label = strings.TrimSpace(label)
	for _, p := range catalog {
		if strings.EqualFold(p.ID, label) || strings.EqualFold(p.Name, label) {
			return p, true
		}
	}
	return Persona{}, false
}

// Allowed reports whether a user with the given entitlement may chat with label.
// Labels outside the catalog are not gated.
func Allowed(label string, entitled bool) bool {
	p, ok := Lookup(label)
	if !ok || !p.Premium {
		return true
	}
	return entitled
}

// Unlocked reports whether label is selectable in the given gate state. Only
// Entitled unlocks premium personas; Checking and Unknown stay locked until resolved.
func Unlocked(label string, state State) bool {
	return Allowed(label, state == Entitled)
}
