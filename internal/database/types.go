package database

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user id does not resolve to a stored user.
var ErrUserNotFound = errors.New("user not found")

// User represents an enrolled person
type User struct {
	ID            string
	FaceEncodings [][]float32 // One per registered capture; only the first is used for matching
	Mail          *MailLink   // nil until a Gmail account is linked
	CreatedAt     time.Time
}

// HasEncodings reports whether the user can authenticate biometrically.
func (u *User) HasEncodings() bool {
	return len(u.FaceEncodings) > 0 && len(u.FaceEncodings[0]) > 0
}

// PrimaryEncoding returns the encoding used for matching, or nil.
func (u *User) PrimaryEncoding() []float32 {
	if !u.HasEncodings() {
		return nil
	}
	return u.FaceEncodings[0]
}

// IsLinked reports whether the user has a Gmail linkage record.
func (u *User) IsLinked() bool {
	return u.Mail != nil
}

// MailLink is the stored authorization grant for a user's Gmail account
type MailLink struct {
	Email    string
	Token    Token
	LinkedAt time.Time
}

// Token is the OAuth2 credential bundle. It is replaced in place on every refresh.
type Token struct {
	AccessToken  string    `json:"access_token" bson:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" bson:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty" bson:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero" bson:"expiry,omitempty"`
}
