package notifications

import (
	"context"
	"encoding/json"
	"errors"

	"jobboard/application-portal/application-portal-backend/internal/notifications/websocket"
)

// ErrRecipientUnavailable means the channel has no address for the user.
// The attempt is recorded as skipped and never retried.
var ErrRecipientUnavailable = errors.New("recipient unavailable on channel")

// Sender delivers a stored notification over one channel
type Sender interface {
	Channel() string
	Send(ctx context.Context, n *SentNotification) (providerID string, err error)
}

// InAppSender marks the stored row as the inbox entry. Nothing leaves the
// process.
type InAppSender struct{}

func (InAppSender) Channel() string { return ChannelInApp }

func (InAppSender) Send(ctx context.Context, n *SentNotification) (string, error) {
	return n.ID.String(), nil
}

// WebSocketSender pushes notifications to the recipient's live sockets
type WebSocketSender struct {
	manager *websocket.Manager
}

// NewWebSocketSender creates a sender on top of the connection manager
func NewWebSocketSender(manager *websocket.Manager) *WebSocketSender {
	return &WebSocketSender{manager: manager}
}

func (s *WebSocketSender) Channel() string { return ChannelWebSocket }

func (s *WebSocketSender) Send(ctx context.Context, n *SentNotification) (string, error) {
	_, err := s.manager.SendToUser(n.UserID.String(), websocket.Message{
		Type:      websocket.MessageTypeNotification,
		Data:      payload(n),
		Timestamp: n.CreatedAt,
	})
	if errors.Is(err, websocket.ErrNotConnected) {
		return "", ErrRecipientUnavailable
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// payload flattens a notification and its metadata for client delivery
func payload(n *SentNotification) map[string]interface{} {
	data := map[string]interface{}{}
	if len(n.Metadata) > 0 {
		_ = json.Unmarshal(n.Metadata, &data)
	}
	data["id"] = n.ID.String()
	data["category"] = n.Category
	data["title"] = n.Title
	data["message"] = n.Message
	if n.ApplicationID != nil {
		data["application_id"] = n.ApplicationID.String()
	}
	return data
}
