package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockPrivChatRepository struct {
	mock.Mock
}

func (m *MockPrivChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockPrivChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPrivChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPrivChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPrivChatRepository) ListAccounts() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockPrivChatRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPrivChatRepository) SetAccountOTP(accountId int, secret string, createdAt time.Time) error {
	args := m.Called(accountId, secret, createdAt)
	return args.Error(0)
}
func (m *MockPrivChatRepository) MarkAccountVerified(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockPrivChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockPrivChatRepository) GetConversation(userId1, userId2 int) ([]Message, error) {
	args := m.Called(userId1, userId2)
	return args.Get(0).([]Message), args.Error(1)
}
