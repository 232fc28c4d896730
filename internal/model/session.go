package model

import "time"

// AuthState is the authentication state of the current session.
type AuthState struct {
	IsAuthenticated bool
	Subject         string
	Token           string
	ExpiresAt       *time.Time
}

// StoredSession is the persisted representation of a session.
type StoredSession struct {
	Token     string
	Subject   string
	ExpiresAt *time.Time
	CreatedAt time.Time
}
