package domain

import "time"

// Identity is the request-scoped view of an authenticated caller.
type Identity struct {
	AccountID int64
	Email     string
}

// Token is an issued bearer credential together with its validity window.
type Token struct {
	Value     string
	ID        string
	AccountID int64
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session pairs an issued token with the account it was issued for.
type Session struct {
	Account PublicAccount
	Token   Token
}
