package types

import "time"

type User struct {
	Id                int     `json:"id"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	EmailAddress      string  `json:"email_address,omitempty"`
	ProfilePictureUrl *string `json:"profile_picture_url"`
}

type Profile struct {
	Id                int     `json:"id"`
	EmailAddress      string  `json:"email"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Bio               string  `json:"bio"`
	ProfilePictureUrl *string `json:"profile_picture_url"`
}

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

// Message is the canonical, server-assigned representation of a chat
// message, produced by the messages API on insert and used for every
// relay broadcast. Content is nil for file messages, FileUrl is nil for
// text messages.
type Message struct {
	Id                int       `json:"id"`
	Content           *string   `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
	SenderId          int       `json:"sender_id"`
	ReceiverId        int       `json:"receiver_id"`
	MessageType       string    `json:"message_type"`
	FileUrl           *string   `json:"file_url"`
	Username          string    `json:"username"`
	ProfilePictureUrl *string   `json:"profile_picture_url"`
}
