package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id                int
	FirstName         string
	LastName          string
	EmailAddress      string
	PasswordHash      string
	Bio               string
	ProfilePictureUrl sql.NullString
	IsVerified        bool
	OtpSecret         sql.NullString
	OtpCreatedAt      sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Message is the canonical persisted record, joined with the sender's
// display name and avatar.
type Message struct {
	Id                int
	Content           sql.NullString
	SenderId          int
	ReceiverId        int
	MessageType       string
	FileUrl           sql.NullString
	CreatedAt         time.Time
	SenderName        string
	SenderPictureUrl  sql.NullString
}

type CreateAccountParams struct {
	FirstName    string
	LastName     string
	EmailAddress string
	PasswordHash string
}

// UpdateProfileParams carries only the fields the caller wants changed;
// nil pointers are left untouched.
type UpdateProfileParams struct {
	UserId            int
	FirstName         *string
	LastName          *string
	Bio               *string
	ProfilePictureUrl *string
}

type CreateMessageParams struct {
	Content     *string
	SenderId    int
	ReceiverId  int
	MessageType string
	FileUrl     *string
}
