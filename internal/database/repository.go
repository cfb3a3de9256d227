package database

import "time"

type PrivChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListAccounts() ([]User, error)
	UpdateProfile(params UpdateProfileParams) (User, error)
	SetAccountOTP(accountId int, secret string, createdAt time.Time) error
	MarkAccountVerified(accountId int) error
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(userId1, userId2 int) ([]Message, error)
}
