package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification channels
const (
	ChannelInApp     = "IN_APP"
	ChannelWebSocket = "WEBSOCKET"
	ChannelEmail     = "EMAIL"
	ChannelPush      = "PUSH"
)

// Delivery statuses
const (
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// SentNotification is the stored copy of a notification intent. It is the
// in-app inbox entry and the source for delivery retries.
type SentNotification struct {
	ID            uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Category      string         `json:"category" gorm:"not null"`
	Title         string         `json:"title" gorm:"not null"`
	Message       string         `json:"message" gorm:"not null"`
	ApplicationID *uuid.UUID     `json:"application_id,omitempty" gorm:"type:uuid;index"`
	Metadata      datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	Status        string         `json:"status" gorm:"not null"`
	InApp         bool           `json:"-" gorm:"not null;index"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;index"`
}

// DeliveryLog tracks delivery of one notification on one channel
type DeliveryLog struct {
	ID                uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	NotificationID    uuid.UUID `json:"notification_id" gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Channel           string    `json:"channel" gorm:"not null"`
	Status            string    `json:"status" gorm:"not null;index"`
	ProviderMessageID string    `json:"provider_message_id"`
	ErrorMessage      string    `json:"error_message"`
	RetryCount        int       `json:"retry_count" gorm:"default:0"`
	FinalStatus       string    `json:"final_status"`
	LastAttemptAt     time.Time `json:"last_attempt_at"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserPreference turns a channel on or off for a notification category
type UserPreference struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_channel_category"`
	Channel   string    `json:"channel" gorm:"not null;uniqueIndex:idx_user_channel_category"`
	Category  string    `json:"category" gorm:"not null;uniqueIndex:idx_user_channel_category"`
	Enabled   bool      `json:"enabled" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserContact holds the out-of-band addresses for a user
type UserContact struct {
	UserID          uuid.UUID `json:"user_id" gorm:"primaryKey;type:uuid"`
	Email           string    `json:"email"`
	PushEndpointARN string    `json:"push_endpoint_arn"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ChannelResult is the outcome of one channel attempt in a dispatch
type ChannelResult struct {
	Channel    string `json:"channel"`
	Status     string `json:"status"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UpdatePreferenceRequest is the body of a preference change
type UpdatePreferenceRequest struct {
	Channel  string `json:"channel" binding:"required"`
	Category string `json:"category" binding:"required"`
	Enabled  bool   `json:"enabled"`
}
