// Package queue defines account event payloads exchanged over the message
// broker and the consumer that reacts to them.
package queue

// Account event types published after a successful write.
const (
	EventUserRegistered      = "user.registered"
	EventUserProfileUpdated  = "user.profile_updated"
	EventUserPasswordChanged = "user.password_changed"
	EventUserPhoneChanged    = "user.phone_changed"
)

// AccountEvent is published when an account is created or mutated. It
// carries identifiers only; consumers that need the new state read it from
// the store.
type AccountEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// InvalidatesProfile reports whether the event changes data held in the
// profile cache.
func (e AccountEvent) InvalidatesProfile() bool {
	switch e.Type {
	case EventUserProfileUpdated, EventUserPasswordChanged, EventUserPhoneChanged:
		return true
	}
	return false
}
