package domain

import "time"

// Session is one inspection session: a target being monitored together with
// the request collection recorded for it.
type Session struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Kind      string    `json:"kind"` // "api" | "proxy" | "har"
	StartedAt time.Time `json:"startedAt"`
	Requests  int       `json:"requests"`
	Filtered  int       `json:"filtered"`
}
