package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"jobboard/application-portal/application-portal-backend/internal/applications"
)

// ErrUnknownChannel is returned for preference changes on unknown channels.
var ErrUnknownChannel = errors.New("unknown notification channel")

// Service delivers notification intents over the configured channels and
// serves the in-app inbox.
type Service struct {
	store   Store
	senders map[string]Sender
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new notification service. Channels without a sender
// are skipped during dispatch.
func NewService(store Store, logger *zap.Logger, senders ...Sender) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		senders: make(map[string]Sender, len(senders)),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, sender := range senders {
		s.senders[sender.Channel()] = sender
	}
	return s
}

// Dispatch implements applications.Dispatcher
func (s *Service) Dispatch(ctx context.Context, intents []applications.NotificationIntent) error {
	var errs []error
	for _, intent := range intents {
		if _, err := s.Send(ctx, intent); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send stores one intent and attempts each of its channels once. Failed
// attempts are left for the retry worker.
func (s *Service) Send(ctx context.Context, intent applications.NotificationIntent) ([]ChannelResult, error) {
	disabled, err := s.store.DisabledChannels(ctx, intent.RecipientUserID, intent.Type)
	if err != nil {
		s.logger.Warn("Ignoring notification preferences", zap.Error(err))
		disabled = nil
	}

	n := &SentNotification{
		ID:        uuid.New(),
		UserID:    intent.RecipientUserID,
		Category:  intent.Type,
		Title:     intent.Title,
		Message:   intent.Message,
		Metadata:  intentMetadata(intent),
		Status:    StatusPending,
		CreatedAt: intent.CreatedAt,
	}
	if intent.ApplicationID != uuid.Nil {
		id := intent.ApplicationID
		n.ApplicationID = &id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.InApp = wants(intent.Channels, ChannelInApp) && !disabled[ChannelInApp]

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	var results []ChannelResult
	for _, channel := range intent.Channels {
		if disabled[channel] {
			results = append(results, ChannelResult{Channel: channel, Status: StatusSkipped})
			continue
		}
		sender, ok := s.senders[channel]
		if !ok {
			s.logger.Debug("Channel not configured", zap.String("channel", channel))
			continue
		}
		results = append(results, s.attempt(ctx, sender, n))
	}

	status := calculateOverallStatus(results)
	if err := s.store.UpdateNotificationStatus(ctx, n.ID, status); err != nil {
		s.logger.Warn("Failed to update notification status", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}

	s.logger.Info("Notification dispatched",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("status", status))

	if status == StatusFailed {
		return results, fmt.Errorf("notification %s failed on every channel", n.ID)
	}
	return results, nil
}

func (s *Service) attempt(ctx context.Context, sender Sender, n *SentNotification) ChannelResult {
	log := &DeliveryLog{
		ID:             uuid.New(),
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        sender.Channel(),
	}
	s.deliver(ctx, sender, n, log)

	if err := s.store.CreateDeliveryLog(ctx, log); err != nil {
		s.logger.Error("Failed to log delivery attempt", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}

	return ChannelResult{
		Channel:    log.Channel,
		Status:     log.Status,
		ProviderID: log.ProviderMessageID,
		Error:      log.ErrorMessage,
	}
}

// deliver runs one attempt and records its outcome on log
func (s *Service) deliver(ctx context.Context, sender Sender, n *SentNotification, log *DeliveryLog) {
	log.LastAttemptAt = s.now()

	providerID, err := sender.Send(ctx, n)
	switch {
	case err == nil:
		log.Status = StatusSent
		if log.Channel == ChannelInApp || log.Channel == ChannelWebSocket {
			log.Status = StatusDelivered
		}
		log.ProviderMessageID = providerID
		log.ErrorMessage = ""
		log.FinalStatus = log.Status
	case errors.Is(err, ErrRecipientUnavailable):
		log.Status = StatusSkipped
		log.ErrorMessage = err.Error()
		log.FinalStatus = StatusSkipped
	default:
		log.Status = StatusFailed
		log.ErrorMessage = err.Error()
		s.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", log.Channel),
			zap.Int("retry_count", log.RetryCount),
			zap.Error(err))
	}
}

// Handles reports whether a sender is configured for channel
func (s *Service) Handles(channel string) bool {
	_, ok := s.senders[channel]
	return ok
}

// Retry re-attempts one failed delivery. The log is claimed first so that
// concurrent workers never send it twice; a lost claim is not an error.
// Once maxRetries attempts have failed the log is closed with a FAILED
// final status.
func (s *Service) Retry(ctx context.Context, log *DeliveryLog, maxRetries int) error {
	sender, ok := s.senders[log.Channel]
	if !ok {
		return fmt.Errorf("no sender for channel %q", log.Channel)
	}

	claimed, err := s.store.ClaimRetry(ctx, log)
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Debug("Delivery already claimed by another worker",
			zap.String("delivery_log_id", log.ID.String()))
		return nil
	}

	n, err := s.store.GetNotification(ctx, log.NotificationID)
	if err != nil {
		return err
	}

	s.deliver(ctx, sender, n, log)
	if log.Status == StatusFailed && log.RetryCount >= maxRetries {
		log.FinalStatus = StatusFailed
	}

	if err := s.store.UpdateDeliveryLog(ctx, log); err != nil {
		return err
	}
	if log.Status == StatusSent || log.Status == StatusDelivered {
		return s.store.UpdateNotificationStatus(ctx, n.ID, StatusDelivered)
	}
	return nil
}

// ListForUser returns the user's in-app notifications, newest first
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]SentNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListForUser(ctx, userID, unreadOnly, limit, offset)
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.MarkRead(ctx, id, userID, s.now())
}

// UpdatePreference enables or disables a channel for a category
func (s *Service) UpdatePreference(ctx context.Context, userID uuid.UUID, req UpdatePreferenceRequest) (*UserPreference, error) {
	switch req.Channel {
	case ChannelInApp, ChannelWebSocket, ChannelEmail, ChannelPush:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}

	pref := &UserPreference{
		ID:       uuid.New(),
		UserID:   userID,
		Channel:  req.Channel,
		Category: req.Category,
		Enabled:  req.Enabled,
	}
	if err := s.store.SavePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func calculateOverallStatus(results []ChannelResult) string {
	hasSuccess, hasFailure := false, false
	for _, r := range results {
		switch r.Status {
		case StatusDelivered, StatusSent:
			hasSuccess = true
		case StatusFailed:
			hasFailure = true
		}
	}

	switch {
	case hasSuccess:
		return StatusDelivered
	case hasFailure:
		return StatusFailed
	case len(results) > 0:
		return StatusSkipped
	default:
		return StatusPending
	}
}

func intentMetadata(intent applications.NotificationIntent) datatypes.JSON {
	data, err := json.Marshal(map[string]interface{}{
		"application_id": intent.ApplicationID.String(),
		"status":         intent.Status,
		"job_title":      intent.JobTitle,
		"recipient_role": intent.RecipientRole,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func wants(channels []string, channel string) bool {
	for _, c := range channels {
		if c == channel {
			return true
		}
	}
	return false
}
