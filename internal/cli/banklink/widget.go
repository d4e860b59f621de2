package banklink

import (
	"context"
	"fmt"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// Widget opens the Plaid Link widget for a link token
type Widget interface {
	Open(ctx context.Context, linkToken string) (Handle, error)
}

// Handle is an open widget. Events carries informational events and may be
// closed at any time; Done delivers exactly one Outcome.
type Handle interface {
	Events() <-chan Event
	Done() <-chan Outcome
}

// Event is an informational widget event
type Event struct {
	Name     string         `json:"event_name"`
	Metadata map[string]any `json:"metadata"`
}

// LinkedInstitution is the institution and accounts picked in the widget
type LinkedInstitution struct {
	InstitutionID   string                 `json:"institution_id"`
	InstitutionName string                 `json:"name"`
	Accounts        []client.LinkedAccount `json:"accounts"`
}

// Success is reported when the user finished linking
type Success struct {
	PublicToken string            `json:"public_token"`
	Institution LinkedInstitution `json:"institution"`
}

// LinkError is the error object Plaid Link reports on exit
type LinkError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
}

func (e *LinkError) Error() string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return fmt.Sprintf("plaid link error %s", e.ErrorCode)
}

// Exit is reported when the widget closed without linking
type Exit struct {
	Err           *LinkError `json:"error"`
	Status        string     `json:"status"`
	LinkSessionID string     `json:"link_session_id"`
}

// Outcome is the terminal result of a widget session. Exactly one of
// Success and Exit is set.
type Outcome struct {
	Success *Success
	Exit    *Exit
}
