package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mfdeleon/go-privchat/internal/types"
)

const defaultStoreTimeout = 10 * time.Second

// MessageStore persists an outbound chat message and returns the
// canonical stored record. The relay never fabricates that record
// itself.
type MessageStore interface {
	SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error)
}

type SaveMessageParams struct {
	Content     string `json:"content"`
	SenderId    int    `json:"senderId"`
	ReceiverId  int    `json:"receiverId"`
	MessageType string `json:"messageType"`
}

// HTTPMessageStore persists messages through the application's own
// messages API, the same way the relay process originally called back
// into the web tier.
type HTTPMessageStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMessageStore(baseURL string, timeout time.Duration) *HTTPMessageStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &HTTPMessageStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPMessageStore) SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return types.Message{}, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return types.Message{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.Message{}, fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Message{}, fmt.Errorf("messages api returned %d: %s", resp.StatusCode, respBody)
	}

	var msg types.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return types.Message{}, fmt.Errorf("decode message: %w", err)
	}

	return msg, nil
}
