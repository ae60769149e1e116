// Package accounts manages user controlled or watched identities and the
// active account of every level.
package accounts

import (
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

type Origin string

const (
	OriginCreated  Origin = "created"
	OriginRestored Origin = "restored"
)

// Account is an identity a user controls or watches. Two accounts are the
// same account iff their IDs match.
type Account struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           Type   `json:"-"`
	Origin         Origin `json:"origin"`
	Level          int    `json:"level"`
	IsBackedUp     bool   `json:"isBackedUp"`
	IsFileBackedUp bool   `json:"isFileBackedUp"`
}

func (a Account) HasAnyBackup() bool {
	return a.IsBackedUp || a.IsFileBackedUp
}

func (a Account) IsWatch() bool {
	return a.Type != nil && a.Type.IsWatch()
}

// ActiveAccountEvent is emitted whenever the active account of a level
// changes. Current is set when Level was the current level at the time of
// the change. Account is nil when the level has no active account.
type ActiveAccountEvent struct {
	Level   int
	Account *Account
	Current bool
}
