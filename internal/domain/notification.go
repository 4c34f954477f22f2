package domain

// Notification is what monitor subscribers receive when a session's
// collection changes.
type Notification struct {
	Type    string   `json:"type"`
	Session string   `json:"session"`
	ID      string   `json:"id,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

// Notification types.
const (
	NotifyRequestAdded    = "request_added"
	NotifyRequestRemoved  = "request_removed"
	NotifyRequestsChanged = "requests_changed"
	NotifySessionReset    = "session_reset"
	NotifySorted          = "sorted"
	NotifyFiltered        = "filtered"
	NotifySessionStarted  = "session_started"
	NotifySessionDeleted  = "session_deleted"
	NotifySessionsCleared = "sessions_cleared"
)
