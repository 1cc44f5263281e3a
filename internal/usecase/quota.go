package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deskmate/internal/domain"
)

// DailyQuota enforces the per-calendar-day cap on accepted queries.
// The count increments when a query is accepted, before its outcome is
// known, so backend errors cannot be retried past the limit.
type DailyQuota struct {
	mu     sync.Mutex
	store  domain.UsageStore
	limit  int
	logger *slog.Logger
	now    func() time.Time // injectable for tests
}

// NewDailyQuota creates a quota tracker backed by store.
func NewDailyQuota(store domain.UsageStore, limit int, logger *slog.Logger) *DailyQuota {
	return &DailyQuota{store: store, limit: limit, logger: logger, now: time.Now}
}

func (q *DailyQuota) today() string {
	return q.now().Format("2006-01-02")
}

// current loads the stored record, resetting it when the stored date is not
// today. Callers hold q.mu.
func (q *DailyQuota) current() (domain.UsageRecord, error) {
	rec, err := q.store.LoadUsage()
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("load usage: %w", err)
	}
	if today := q.today(); rec.Date != today {
		rec = domain.UsageRecord{Date: today, Count: 0}
	}
	return rec, nil
}

// Accept admits one query against today's budget. On success the counter is
// incremented and persisted before returning. At the limit it returns
// ErrQuotaExceeded without incrementing.
func (q *DailyQuota) Accept() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.current()
	if err != nil {
		return err
	}
	if rec.Count >= q.limit {
		return domain.NewDomainError("DailyQuota.Accept", domain.ErrQuotaExceeded,
			fmt.Sprintf("%d of %d queries used today", rec.Count, q.limit))
	}

	rec.Count++
	if err := q.store.SaveUsage(rec); err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

// Remaining reports how many queries are left today.
func (q *DailyQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.current()
	if err != nil {
		q.logger.Warn("usage load failed", "error", err)
		return 0
	}
	if left := q.limit - rec.Count; left > 0 {
		return left
	}
	return 0
}

// Limit returns the configured daily cap.
func (q *DailyQuota) Limit() int { return q.limit }

// ScheduleMidnightReset registers a cron job that rolls the counter over at
// local midnight. The lazy date check in Accept already guarantees
// correctness; the job keeps the persisted record fresh for anything else
// reading it.
func (q *DailyQuota) ScheduleMidnightReset(c *cron.Cron) error {
	_, err := c.AddFunc("0 0 * * *", func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		rec := domain.UsageRecord{Date: q.today(), Count: 0}
		if err := q.store.SaveUsage(rec); err != nil {
			q.logger.Warn("midnight usage reset failed", "error", err)
			return
		}
		q.logger.Info("usage counter reset", "date", rec.Date)
	})
	return err
}
