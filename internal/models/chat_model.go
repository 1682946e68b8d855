package models

import "time"

// ChatMessage is one immutable exchange between a user and a persona.
type ChatMessage struct {
	ID        string    `json:"id,omitempty" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	Persona   string    `json:"persona" firestore:"persona"`
	Message   string    `json:"message" firestore:"message"`
	Reply     string    `json:"reply" firestore:"reply"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// DailyUsage counts chat messages sent by a user on one UTC day.
type DailyUsage struct {
	UserID    string    `json:"userId" firestore:"userId"`
	Day       string    `json:"day" firestore:"day"` // YYYY-MM-DD, UTC
	Count     int       `json:"count" firestore:"count"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
