// Package domain contains core concepts of the messaging system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"time"
)

// UserID is an opaque identifier owned by the account store.
// The realtime core only uses it as a correlation key.
type UserID int64

// GroupKey names a set of connections that receive the same broadcast.
type GroupKey string

// PresenceGroup is the single process-wide group carrying presence updates.
const PresenceGroup GroupKey = "presence"

// UserGroup is the per-user group; every device of a user subscribes to it.
func UserGroup(id UserID) GroupKey {
	return GroupKey(fmt.Sprintf("user_%d", id))
}

type User struct {
	ID           UserID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}
