package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Balance refresh for one linked Plaid item
	TypeRefreshBalances = "plaid:refresh_balances"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	ItemID string `json:"item_id,omitempty"`
}

// NewRefreshBalancesTask creates a task to refresh the balances of a Plaid item
func NewRefreshBalancesTask(itemID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		ItemID: itemID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeRefreshBalances, payload), nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
