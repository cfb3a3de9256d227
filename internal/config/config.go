package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const defaultOTPExpiration = 10 * time.Minute

// SMTPConfig holds the settings used to deliver one-time-password
// emails. An empty Host disables real delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	UploadDir      string
	OTPExpiration  time.Duration
	SMTP           SMTPConfig
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret, uploadDir string, allowedOrigins []string, smtp SMTPConfig, otpExpiration time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if uploadDir == "" {
		return nil, fmt.Errorf("upload directory cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if otpExpiration <= 0 {
		otpExpiration = defaultOTPExpiration
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		UploadDir:      uploadDir,
		OTPExpiration:  otpExpiration,
		SMTP:           smtp,
	}, nil
}
