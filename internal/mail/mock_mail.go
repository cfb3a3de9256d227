package mail

import "github.com/stretchr/testify/mock"

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(to, name, code string) error {
	args := m.Called(to, name, code)
	return args.Error(0)
}
