package models

import (
	"maps"
	"time"
)

// User is a credential-store record. Username is the identity shared with the
// Worker Agent; PasswordHash is argon2id(password, Salt) and never plaintext.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Salt         []byte
	Profile      map[string]any
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Clone returns a deep-enough copy so callers cannot mutate stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.Salt = append([]byte(nil), u.Salt...)
	if u.Profile != nil {
		c.Profile = maps.Clone(u.Profile)
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
