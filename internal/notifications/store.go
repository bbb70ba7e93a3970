package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotificationNotFound signals a missing or foreign notification.
var ErrNotificationNotFound = errors.New("notification not found")

// Store persists notifications, delivery logs and preferences
type Store interface {
	CreateNotification(ctx context.Context, n *SentNotification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status string) error
	GetNotification(ctx context.Context, id uuid.UUID) (*SentNotification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]SentNotification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error

	CreateDeliveryLog(ctx context.Context, log *DeliveryLog) error
	UpdateDeliveryLog(ctx context.Context, log *DeliveryLog) error
	RetryableDeliveries(ctx context.Context, maxRetries, limit int) ([]DeliveryLog, error)
	// ClaimRetry takes log for one retry attempt by bumping its retry count,
	// but only if the stored row still has log's count and is not final.
	// On success log.RetryCount is advanced. It returns false when another
	// worker got there first.
	ClaimRetry(ctx context.Context, log *DeliveryLog) (bool, error)

	DisabledChannels(ctx context.Context, userID uuid.UUID, category string) (map[string]bool, error)
	SavePreference(ctx context.Context, pref *UserPreference) error
	GetContact(ctx context.Context, userID uuid.UUID) (*UserContact, error)
}

// GormStore implements Store with gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates the notification tables
func (s *GormStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&SentNotification{},
		&DeliveryLog{},
		&UserPreference{},
		&UserContact{},
	); err != nil {
		return fmt.Errorf("failed to migrate notification tables: %w", err)
	}
	return nil
}

func (s *GormStore) CreateNotification(ctx context.Context, n *SentNotification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	err := s.db.WithContext(ctx).Model(&SentNotification{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}

func (s *GormStore) GetNotification(ctx context.Context, id uuid.UUID) (*SentNotification, error) {
	var n SentNotification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (s *GormStore) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]SentNotification, error) {
	var notifications []SentNotification

	query := s.db.WithContext(ctx).Where("user_id = ? AND in_app = ?", userID, true)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user notifications: %w", err)
	}
	return notifications, nil
}

func (s *GormStore) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&SentNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *GormStore) CreateDeliveryLog(ctx context.Context, log *DeliveryLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateDeliveryLog(ctx context.Context, log *DeliveryLog) error {
	if err := s.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("failed to update delivery log: %w", err)
	}
	return nil
}

func (s *GormStore) RetryableDeliveries(ctx context.Context, maxRetries, limit int) ([]DeliveryLog, error) {
	var logs []DeliveryLog
	err := s.db.WithContext(ctx).
		Where("status = ? AND retry_count < ? AND final_status = ''", StatusFailed, maxRetries).
		Order("last_attempt_at ASC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get retryable deliveries: %w", err)
	}
	return logs, nil
}

func (s *GormStore) ClaimRetry(ctx context.Context, log *DeliveryLog) (bool, error) {
	result := s.db.WithContext(ctx).Model(&DeliveryLog{}).
		Where("id = ? AND retry_count = ? AND final_status = ''", log.ID, log.RetryCount).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim delivery log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	log.RetryCount++
	return true, nil
}

func (s *GormStore) DisabledChannels(ctx context.Context, userID uuid.UUID, category string) (map[string]bool, error) {
	var prefs []UserPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND enabled = ?", userID, category, false).
		Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user preferences: %w", err)
	}

	disabled := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		disabled[p.Channel] = true
	}
	return disabled, nil
}

func (s *GormStore) SavePreference(ctx context.Context, pref *UserPreference) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	// on conflict the stored row keeps its own id
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND channel = ? AND category = ?", pref.UserID, pref.Channel, pref.Category).
		First(pref).Error
	if err != nil {
		return fmt.Errorf("failed to reload preference: %w", err)
	}
	return nil
}

func (s *GormStore) GetContact(ctx context.Context, userID uuid.UUID) (*UserContact, error) {
	var contact UserContact
	if err := s.db.WithContext(ctx).First(&contact, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientUnavailable
		}
		return nil, fmt.Errorf("failed to get user contact: %w", err)
	}
	return &contact, nil
}
