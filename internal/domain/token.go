package domain

import "time"

// TokenType tags the purpose a signed token was minted for.
type TokenType string

const (
	TokenTypeAccess        TokenType = "ACCESS"
	TokenTypeRefresh       TokenType = "REFRESH"
	TokenTypeResetPassword TokenType = "RESET_PASSWORD"
	TokenTypeVerifyEmail   TokenType = "VERIFY_EMAIL"
)

// TokenTypes lists every supported token purpose.
var TokenTypes = []TokenType{
	TokenTypeAccess,
	TokenTypeRefresh,
	TokenTypeResetPassword,
	TokenTypeVerifyEmail,
}

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeResetPassword, TokenTypeVerifyEmail:
		return true
	}
	return false
}

// Persisted reports whether tokens of this type are backed by a stored record.
// Access tokens are verified by signature and expiry alone.
func (t TokenType) Persisted() bool {
	return t.Valid() && t != TokenTypeAccess
}

// TokenRecord is the decoded or persisted form of an issued token.
type TokenRecord struct {
	ID        string
	Token     string
	Subject   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the record is no longer valid at now.
func (r TokenRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IssuedToken is a signed token paired with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthTokens is the access/refresh pair returned by login style flows.
type AuthTokens struct {
	Access  IssuedToken
	Refresh IssuedToken
}
