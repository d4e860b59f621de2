package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/tasks"
)

const (
	refreshTaskTimeout = 2 * time.Minute
	refreshTaskRetries = 3
	refreshUniqueFor   = 30 * time.Minute
)

// Enqueuer is the part of asynq.Client the scheduler needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ItemLister lists the Plaid items due for a balance refresh
type ItemLister interface {
	ActiveItemIDs(ctx context.Context) ([]string, error)
}

// RefreshScheduler enqueues one balance refresh per active item each time
// its cron schedule comes due
type RefreshScheduler struct {
	client   Enqueuer
	items    ItemLister
	schedule cron.Schedule
	next     time.Time
	logger   zerolog.Logger
}

// NewRefreshScheduler parses a standard 5-field cron expression. The first
// refresh happens at the schedule's next tick after now.
func NewRefreshScheduler(client Enqueuer, items ItemLister, cronExpr string, now time.Time, logger zerolog.Logger) (*RefreshScheduler, error) {
	// Parse cron expression (standard 5-field format: minute hour day-of-month month day-of-week)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cronExpr, err)
	}

	return &RefreshScheduler{
		client:   client,
		items:    items,
		schedule: schedule,
		next:     schedule.Next(now),
		logger:   logger.With().Str("component", "refresh_scheduler").Logger(),
	}, nil
}

// Next returns when the next refresh is due
func (s *RefreshScheduler) Next() time.Time {
	return s.next
}

// Run checks the schedule every minute until ctx is done
func (s *RefreshScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	s.logger.Info().Time("next_refresh_at", s.next).Msg("Balance refresh scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Check(ctx, now)
		}
	}
}

// Check enqueues refresh tasks when the schedule is due and returns how
// many were enqueued
func (s *RefreshScheduler) Check(ctx context.Context, now time.Time) int {
	if now.Before(s.next) {
		s.logger.Debug().Time("next_refresh_at", s.next).Msg("Refresh not due yet")
		return 0
	}

	itemIDs, err := s.items.ActiveItemIDs(ctx)
	if err != nil {
		// Leave next untouched so the following tick tries again
		s.logger.Error().Err(err).Msg("Failed to list items for refresh")
		return 0
	}

	// Failed enqueues wait for the next due time
	s.next = s.schedule.Next(now)

	enqueued := 0
	for _, itemID := range itemIDs {
		task, err := tasks.NewRefreshBalancesTask(itemID)
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to create refresh task")
			continue
		}

		_, err = s.client.EnqueueContext(ctx, task,
			asynq.Timeout(refreshTaskTimeout),
			asynq.MaxRetry(refreshTaskRetries),
			asynq.Unique(refreshUniqueFor),
		)
		if errors.Is(err, asynq.ErrDuplicateTask) {
			s.logger.Debug().Str("item_id", itemID).Msg("Refresh already queued")
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to enqueue refresh task")
			continue
		}
		enqueued++
	}

	s.logger.Info().
		Int("items", len(itemIDs)).
		Int("enqueued", enqueued).
		Time("next_refresh_at", s.next).
		Msg("Balance refresh tasks enqueued")

	return enqueued
}
