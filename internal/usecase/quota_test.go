package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskmate/internal/domain"
	"deskmate/internal/infra/logger"
)

func fixedClock(day string) func() time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return func() time.Time { return t }
}

func TestQuotaAcceptUpToLimit(t *testing.T) {
	store := &memUsageStore{}
	quota := NewDailyQuota(store, 10, logger.Discard())
	quota.now = fixedClock("2026-08-31")

	for i := 0; i < 10; i++ {
		require.NoError(t, quota.Accept(), "query %d should be accepted", i+1)
	}

	// The 11th is rejected and the counter stays at the limit.
	err := quota.Accept()
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	rec, _ := store.LoadUsage()
	assert.Equal(t, 10, rec.Count)
	assert.Equal(t, "2026-08-31", rec.Date)
	assert.Equal(t, 0, quota.Remaining())
}

func TestQuotaIncrementsBeforeOutcome(t *testing.T) {
	store := &memUsageStore{}
	quota := NewDailyQuota(store, 10, logger.Discard())
	quota.now = fixedClock("2026-08-31")

	require.NoError(t, quota.Accept())

	// The counter is persisted immediately on accept; a backend failure
	// afterwards cannot un-spend the query.
	rec, _ := store.LoadUsage()
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, 1, store.saves)
}

func TestQuotaDateRollover(t *testing.T) {
	store := &memUsageStore{}
	store.rec = &domain.UsageRecord{Date: "2026-08-30", Count: 10}

	quota := NewDailyQuota(store, 10, logger.Discard())
	quota.now = fixedClock("2026-08-31")

	// Yesterday's exhausted budget does not carry into today.
	assert.Equal(t, 10, quota.Remaining())
	require.NoError(t, quota.Accept())

	rec, _ := store.LoadUsage()
	assert.Equal(t, domain.UsageRecord{Date: "2026-08-31", Count: 1}, rec)
}

func TestQuotaRemaining(t *testing.T) {
	store := &memUsageStore{}
	quota := NewDailyQuota(store, 3, logger.Discard())
	quota.now = fixedClock("2026-08-31")

	assert.Equal(t, 3, quota.Remaining())
	require.NoError(t, quota.Accept())
	assert.Equal(t, 2, quota.Remaining())
	assert.Equal(t, 3, quota.Limit())
}

func TestQuotaErrorDetail(t *testing.T) {
	store := &memUsageStore{}
	quota := NewDailyQuota(store, 1, logger.Discard())
	quota.now = fixedClock("2026-08-31")

	require.NoError(t, quota.Accept())
	err := quota.Accept()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 queries used today")
}
