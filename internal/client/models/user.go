// Package models defines the client-side data model: the session
// credential, user profiles, conversations, notifications and feed items.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AuthProvider string

const (
	AuthProviderPassword  AuthProvider = "password"
	AuthProviderFederated AuthProvider = "federated"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Verification string

const (
	VerificationUnverified Verification = "unverified"
	VerificationPending    Verification = "pending"
	VerificationVerified   Verification = "verified"
)

var (
	ErrMissingToken = errors.New("credential token is missing")
	ErrMissingUser  = errors.New("credential user is missing")
	ErrInvalidUser  = errors.New("credential user id must be positive")
)

// Profile is a user as returned by the auth/profile service.
type Profile struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	Location     string       `json:"location,omitempty"`
	Interests    string       `json:"interests,omitempty"`
	Visibility   Visibility   `json:"visibility,omitempty"`
	Verification Verification `json:"verification,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// UserID is the identifier the realtime store knows this user by.
func (p Profile) UserID() string {
	return UserID(p.ID)
}

// InterestList splits the comma-separated interests, dropping blanks.
func (p Profile) InterestList() []string {
	var out []string
	for _, tag := range strings.Split(p.Interests, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// UserID formats a numeric user id for use as a conversation participant.
func UserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Credential is the locally persisted proof of authentication plus the
// cached profile of the signed-in user.
type Credential struct {
	Token        string       `json:"token"`
	User         *Profile     `json:"user"`
	AuthProvider AuthProvider `json:"auth_provider"`
}

// Validate checks the fields a usable credential must carry.
func (c *Credential) Validate() error {
	if c == nil || strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if c.User == nil {
		return ErrMissingUser
	}
	if c.User.ID <= 0 {
		return ErrInvalidUser
	}
	return nil
}

// ExpiresAt reads the exp claim when Token is a JWT. The signature is not
// checked; the server stays the authority on validity. ok is false for
// opaque tokens and JWTs without exp.
func (c *Credential) ExpiresAt() (t time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.User != nil {
		u := *c.User
		out.User = &u
	}
	return &out
}
