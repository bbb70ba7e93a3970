package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/internal/applications"
	"jobboard/application-portal/application-portal-backend/internal/config"
	"jobboard/application-portal/application-portal-backend/internal/notifications/websocket"
	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// memoryStore is an in-memory Store for service tests
type memoryStore struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*SentNotification
	logs          map[uuid.UUID]*DeliveryLog
	prefs         []UserPreference
	contacts      map[uuid.UUID]*UserContact
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		notifications: make(map[uuid.UUID]*SentNotification),
		logs:          make(map[uuid.UUID]*DeliveryLog),
		contacts:      make(map[uuid.UUID]*UserContact),
	}
}

func (s *memoryStore) CreateNotification(ctx context.Context, n *SentNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *memoryStore) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[id].Status = status
	return nil
}

func (s *memoryStore) GetNotification(ctx context.Context, id uuid.UUID) (*SentNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *memoryStore) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]SentNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentNotification
	for _, n := range s.notifications {
		if n.UserID == userID && n.InApp && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.ReadAt = &at
	return nil
}

func (s *memoryStore) CreateDeliveryLog(ctx context.Context, log *DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.logs[log.ID] = &cp
	return nil
}

func (s *memoryStore) UpdateDeliveryLog(ctx context.Context, log *DeliveryLog) error {
	return s.CreateDeliveryLog(ctx, log)
}

func (s *memoryStore) RetryableDeliveries(ctx context.Context, maxRetries, limit int) ([]DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DeliveryLog
	for _, l := range s.logs {
		if l.Status == StatusFailed && l.RetryCount < maxRetries && l.FinalStatus == "" {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memoryStore) ClaimRetry(ctx context.Context, log *DeliveryLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.logs[log.ID]
	if !ok || stored.RetryCount != log.RetryCount || stored.FinalStatus != "" {
		return false, nil
	}
	stored.RetryCount++
	log.RetryCount++
	return true, nil
}

func (s *memoryStore) DisabledChannels(ctx context.Context, userID uuid.UUID, category string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	disabled := map[string]bool{}
	for _, p := range s.prefs {
		if p.UserID == userID && p.Category == category && !p.Enabled {
			disabled[p.Channel] = true
		}
	}
	return disabled, nil
}

func (s *memoryStore) SavePreference(ctx context.Context, pref *UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.prefs {
		if p.UserID == pref.UserID && p.Channel == pref.Channel && p.Category == pref.Category {
			s.prefs[i].Enabled = pref.Enabled
			*pref = s.prefs[i]
			return nil
		}
	}
	s.prefs = append(s.prefs, *pref)
	return nil
}

func (s *memoryStore) GetContact(ctx context.Context, userID uuid.UUID) (*UserContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, ErrRecipientUnavailable
	}
	return c, nil
}

func (s *memoryStore) logsFor(channel string) []DeliveryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DeliveryLog
	for _, l := range s.logs {
		if l.Channel == channel {
			out = append(out, *l)
		}
	}
	return out
}

// MockSES is a mock implementation of the SESAPI interface
type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

// MockSNS is a mock implementation of the SNSAPI interface
type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func testIntent(channels ...string) applications.NotificationIntent {
	return applications.NotificationIntent{
		RecipientUserID: uuid.New(),
		RecipientRole:   workflows.RoleJobSeeker,
		Type:            applications.IntentTypeApplicationStatus,
		Title:           "Application update: Data Engineer",
		Message:         "Congratulations! You have been shortlisted",
		ApplicationID:   uuid.New(),
		Status:          workflows.StatusShortlisted,
		JobTitle:        "Data Engineer",
		Channels:        channels,
		CreatedAt:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestDispatchInAppAndEmail(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), InAppSender{}, NewEmailSender(ses, store, "jobs@example.com", ""))

	intent := testIntent(ChannelInApp, ChannelEmail)
	store.contacts[intent.RecipientUserID] = &UserContact{UserID: intent.RecipientUserID, Email: "seeker@example.com"}
	ses.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return in.Destination.ToAddresses[0] == "seeker@example.com" &&
			aws.ToString(in.Content.Simple.Subject.Data) == intent.Title &&
			aws.ToString(in.Content.Simple.Body.Text.Data) == intent.Message
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil)

	require.NoError(t, svc.Dispatch(context.Background(), []applications.NotificationIntent{intent}))

	inbox, err := svc.ListForUser(context.Background(), intent.RecipientUserID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, intent.Message, inbox[0].Message)
	assert.Equal(t, StatusDelivered, inbox[0].Status)
	assert.Contains(t, string(inbox[0].Metadata), "SHORTLISTED")

	emails := store.logsFor(ChannelEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, StatusSent, emails[0].Status)
	assert.Equal(t, "ses-1", emails[0].ProviderMessageID)
	ses.AssertExpectations(t)
}

func TestDispatchHonorsPreferences(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), InAppSender{}, NewEmailSender(ses, store, "jobs@example.com", ""))
	intent := testIntent(ChannelInApp, ChannelEmail)

	_, err := svc.UpdatePreference(context.Background(), intent.RecipientUserID, UpdatePreferenceRequest{
		Channel: ChannelEmail, Category: intent.Type, Enabled: false,
	})
	require.NoError(t, err)

	results, err := svc.Send(context.Background(), intent)
	require.NoError(t, err)
	assert.Contains(t, results, ChannelResult{Channel: ChannelEmail, Status: StatusSkipped})
	ses.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestDispatchReportsTotalFailure(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), NewEmailSender(ses, store, "jobs@example.com", ""))
	intent := testIntent(ChannelEmail)
	store.contacts[intent.RecipientUserID] = &UserContact{UserID: intent.RecipientUserID, Email: "seeker@example.com"}
	ses.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := svc.Dispatch(context.Background(), []applications.NotificationIntent{intent})

	assert.Error(t, err)
	logs := store.logsFor(ChannelEmail)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusFailed, logs[0].Status)
	assert.Empty(t, logs[0].FinalStatus)
	assert.Contains(t, logs[0].ErrorMessage, "throttled")
}

func TestEmailWithoutAddressIsSkipped(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), NewEmailSender(ses, store, "jobs@example.com", ""))

	results, err := svc.Send(context.Background(), testIntent(ChannelEmail))

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
	retryable, _ := store.RetryableDeliveries(context.Background(), 5, 10)
	assert.Empty(t, retryable)
}

func TestPushTargetsEndpointOrTopic(t *testing.T) {
	store := newMemoryStore()
	client := new(MockSNS)
	sender := NewPushSender(client, store, "arn:aws:sns:eu-west-1:123456789012:application-updates")

	withEndpoint := &SentNotification{ID: uuid.New(), UserID: uuid.New(), Category: "APPLICATION_STATUS", Title: "t", Message: "m"}
	store.contacts[withEndpoint.UserID] = &UserContact{UserID: withEndpoint.UserID, PushEndpointARN: "arn:aws:sns:endpoint/1"}
	withoutEndpoint := &SentNotification{ID: uuid.New(), UserID: uuid.New(), Category: "APPLICATION_STATUS", Title: "t", Message: "m"}

	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TargetArn) == "arn:aws:sns:endpoint/1" && in.TopicArn == nil
	})).Return(&sns.PublishOutput{MessageId: aws.String("direct")}, nil).Once()
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return in.TopicArn != nil && aws.ToString(in.MessageAttributes["user_id"].StringValue) == withoutEndpoint.UserID.String()
	})).Return(&sns.PublishOutput{MessageId: aws.String("topic")}, nil).Once()

	id, err := sender.Send(context.Background(), withEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "direct", id)

	id, err = sender.Send(context.Background(), withoutEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "topic", id)
	client.AssertExpectations(t)
}

func TestRetryWorkerResendsFailedDeliveries(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), NewEmailSender(ses, store, "jobs@example.com", ""))
	intent := testIntent(ChannelEmail)
	store.contacts[intent.RecipientUserID] = &UserContact{UserID: intent.RecipientUserID, Email: "seeker@example.com"}

	ses.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
	ses.On("SendEmail", mock.Anything, mock.Anything).Return(&sesv2.SendEmailOutput{MessageId: aws.String("ses-2")}, nil).Once()

	_, err := svc.Send(context.Background(), intent)
	require.Error(t, err)

	worker := NewRetryWorker(svc, store, RetryConfig{Schedule: "@every 1m", MaxRetries: 3, BatchSize: 10}, zap.NewNop())
	succeeded, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)

	logs := store.logsFor(ChannelEmail)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusSent, logs[0].Status)
	assert.Equal(t, 1, logs[0].RetryCount)
	assert.Equal(t, StatusSent, logs[0].FinalStatus)

	n, err := store.GetNotification(context.Background(), logs[0].NotificationID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, n.Status)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	svc := NewService(store, zap.NewNop(), NewEmailSender(ses, store, "jobs@example.com", ""))
	intent := testIntent(ChannelEmail)
	store.contacts[intent.RecipientUserID] = &UserContact{UserID: intent.RecipientUserID, Email: "seeker@example.com"}
	ses.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("rejected"))

	_, _ = svc.Send(context.Background(), intent)
	worker := NewRetryWorker(svc, store, RetryConfig{MaxRetries: 2, BatchSize: 10}, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
	}

	logs := store.logsFor(ChannelEmail)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].RetryCount)
	assert.Equal(t, StatusFailed, logs[0].FinalStatus)
	ses.AssertNumberOfCalls(t, "SendEmail", 3)
}

func TestRetryWorkerRejectsBadSchedule(t *testing.T) {
	worker := NewRetryWorker(NewService(newMemoryStore(), zap.NewNop()), newMemoryStore(), RetryConfig{Schedule: "not a cron"}, zap.NewNop())
	assert.Error(t, worker.Start(context.Background()))
}

func TestMarkRead(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, zap.NewNop(), InAppSender{})
	intent := testIntent(ChannelInApp)
	_, err := svc.Send(context.Background(), intent)
	require.NoError(t, err)

	inbox, err := svc.ListForUser(context.Background(), intent.RecipientUserID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), inbox[0].ID, uuid.New()), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), inbox[0].ID, intent.RecipientUserID))

	unread, err := svc.ListForUser(context.Background(), intent.RecipientUserID, true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestCalculateOverallStatus(t *testing.T) {
	assert.Equal(t, StatusPending, calculateOverallStatus(nil))
	assert.Equal(t, StatusDelivered, calculateOverallStatus([]ChannelResult{{Status: StatusFailed}, {Status: StatusSent}}))
	assert.Equal(t, StatusFailed, calculateOverallStatus([]ChannelResult{{Status: StatusFailed}, {Status: StatusSkipped}}))
	assert.Equal(t, StatusSkipped, calculateOverallStatus([]ChannelResult{{Status: StatusSkipped}}))
}

func TestBuildSendersInProcessChannels(t *testing.T) {
	cfg := &config.Config{Notifications: config.NotificationsConfig{
		Channels: []string{ChannelInApp, ChannelWebSocket},
	}}

	withoutSockets, err := BuildSenders(context.Background(), cfg, newMemoryStore(), nil)
	require.NoError(t, err)
	require.Len(t, withoutSockets, 1)
	assert.Equal(t, ChannelInApp, withoutSockets[0].Channel())

	withSockets, err := BuildSenders(context.Background(), cfg, newMemoryStore(), websocket.NewManager(nil, zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, withSockets, 2)
	assert.Equal(t, ChannelWebSocket, withSockets[1].Channel())
}

func TestConcurrentRetryWorkersSendOnce(t *testing.T) {
	store := newMemoryStore()
	ses := new(MockSES)
	intent := testIntent(ChannelEmail)
	store.contacts[intent.RecipientUserID] = &UserContact{UserID: intent.RecipientUserID, Email: "seeker@example.com"}

	ses.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
	ses.On("SendEmail", mock.Anything, mock.Anything).Return(&sesv2.SendEmailOutput{MessageId: aws.String("ses-2")}, nil)

	apiSide := NewService(store, zap.NewNop(), InAppSender{}, NewEmailSender(ses, store, "jobs@example.com", ""))
	workerSide := NewService(store, zap.NewNop(), NewEmailSender(ses, store, "jobs@example.com", ""))
	_, err := apiSide.Send(context.Background(), intent)
	require.Error(t, err)

	config := RetryConfig{MaxRetries: 3, BatchSize: 10}
	workers := []*RetryWorker{
		NewRetryWorker(apiSide, store, config, zap.NewNop()),
		NewRetryWorker(workerSide, store, config, zap.NewNop()),
	}

	// both workers load the same failed row before either retries it
	logs, err := store.RetryableDeliveries(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	var wg sync.WaitGroup
	for _, w := range workers {
		log := logs[0]
		wg.Add(1)
		go func(w *RetryWorker, log DeliveryLog) {
			defer wg.Done()
			assert.NoError(t, w.service.Retry(context.Background(), &log, config.MaxRetries))
		}(w, log)
	}
	wg.Wait()

	for _, w := range workers {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
	}

	ses.AssertNumberOfCalls(t, "SendEmail", 2)
	stored := store.logsFor(ChannelEmail)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].RetryCount)
	assert.Equal(t, StatusSent, stored[0].FinalStatus)
}

func TestRetryWithoutSenderLeavesLogUntouched(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, zap.NewNop(), InAppSender{})
	log := &DeliveryLog{ID: uuid.New(), NotificationID: uuid.New(), Channel: ChannelPush, Status: StatusFailed}
	require.NoError(t, store.CreateDeliveryLog(context.Background(), log))

	assert.False(t, svc.Handles(ChannelPush))
	assert.Error(t, svc.Retry(context.Background(), log, 5))

	stored := store.logsFor(ChannelPush)
	require.Len(t, stored, 1)
	assert.Equal(t, 0, stored[0].RetryCount)
	assert.Empty(t, stored[0].FinalStatus)

	worker := NewRetryWorker(svc, store, RetryConfig{MaxRetries: 5, BatchSize: 10}, zap.NewNop())
	succeeded, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, succeeded)
}

func TestUpdatePreferenceKeepsStoredID(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, zap.NewNop())
	userID := uuid.New()
	req := UpdatePreferenceRequest{Channel: ChannelEmail, Category: applications.IntentTypeApplicationStatus}

	first, err := svc.UpdatePreference(context.Background(), userID, req)
	require.NoError(t, err)

	req.Enabled = true
	second, err := svc.UpdatePreference(context.Background(), userID, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Enabled)
	disabled, err := store.DisabledChannels(context.Background(), userID, req.Category)
	require.NoError(t, err)
	assert.Empty(t, disabled)
}
