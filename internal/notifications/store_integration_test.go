package notifications

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store := NewGormStore(db)
	require.NoError(t, store.AutoMigrate())
	return store, db
}

func TestGormStoreClaimRetryIsExclusive(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	log := &DeliveryLog{
		ID:             uuid.New(),
		NotificationID: uuid.New(),
		UserID:         uuid.New(),
		Channel:        ChannelEmail,
		Status:         StatusFailed,
		LastAttemptAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateDeliveryLog(ctx, log))
	t.Cleanup(func() { db.Delete(&DeliveryLog{}, "id = ?", log.ID) })

	first, second := *log, *log
	claimed, err := store.ClaimRetry(ctx, &first)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, first.RetryCount)

	claimed, err = store.ClaimRetry(ctx, &second)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, 0, second.RetryCount)
}

func TestGormStoreSavePreferenceReturnsStoredRow(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	t.Cleanup(func() { db.Delete(&UserPreference{}, "user_id = ?", userID) })

	first := &UserPreference{ID: uuid.New(), UserID: userID, Channel: ChannelPush, Category: "APPLICATION_STATUS", Enabled: false}
	require.NoError(t, store.SavePreference(ctx, first))

	second := &UserPreference{ID: uuid.New(), UserID: userID, Channel: ChannelPush, Category: "APPLICATION_STATUS", Enabled: true}
	require.NoError(t, store.SavePreference(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Enabled)
}
