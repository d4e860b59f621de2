package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/banking"
	"github.com/thrivebase/thrivebase/internal/tasks"
)

// ItemRefresher refreshes the stored balances of one Plaid item
type ItemRefresher interface {
	RefreshItem(ctx context.Context, itemID string) error
}

// HandleRefreshBalances refreshes the balances of the item named in the task
func HandleRefreshBalances(ctx context.Context, t *asynq.Task, refresher ItemRefresher, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ItemID == "" {
		return fmt.Errorf("task has no item_id: %w", asynq.SkipRetry)
	}

	err = refresher.RefreshItem(ctx, payload.ItemID)
	switch {
	case errors.Is(err, banking.ErrItemNotFound):
		// Disconnected since the task was enqueued
		logger.Info().Str("item_id", payload.ItemID).Msg("Item no longer active, skipping refresh")
		return nil
	case errors.Is(err, banking.ErrAccessTokenUnusable):
		logger.Error().Err(err).Str("item_id", payload.ItemID).Msg("Cannot refresh item")
		return fmt.Errorf("item %s: %v: %w", payload.ItemID, err, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("failed to refresh item %s: %w", payload.ItemID, err)
	}

	logger.Info().Str("item_id", payload.ItemID).Msg("Balances refreshed")
	return nil
}
