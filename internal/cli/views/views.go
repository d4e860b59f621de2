// Package views renders the application's pages to a terminal.
package views

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/thrivebase/thrivebase/internal/cli/client"
	"github.com/thrivebase/thrivebase/internal/cli/router"
	"github.com/thrivebase/thrivebase/internal/cli/session"
)

// SessionReader exposes the current session state
type SessionReader interface {
	Snapshot() session.Session
}

// Banking is the part of the bank link gateway the dashboard reads
type Banking interface {
	AccountSummary(ctx context.Context) client.AccountSummary
	ConnectedInstitutions(ctx context.Context) []client.Institution
	Err() error
}

// Pages renders every route of the application
type Pages struct {
	Out        io.Writer
	Session    SessionReader
	Bank       Banking
	WebsiteURL string
}

// Views binds the pages to the router's view slots
func (p *Pages) Views() router.Views {
	return router.Views{
		Home:      router.ViewFunc(p.home),
		Dashboard: router.ViewFunc(p.dashboard),
		SignIn:    router.ViewFunc(p.signIn),
		SignUp:    router.ViewFunc(p.signUp),
		Profile:   router.ViewFunc(p.profile),
		Terms:     router.ViewFunc(p.terms),
		Privacy:   router.ViewFunc(p.privacy),
	}
}

func (p *Pages) home(_ context.Context, _ router.Location) error {
	fmt.Fprintln(p.Out, "ThriveBase - your finances in one place")
	s := p.Session.Snapshot()
	if s.Authenticated {
		fmt.Fprintf(p.Out, "Signed in as %s\n", displayEmail(s.User))
		fmt.Fprintln(p.Out, "Run 'thrivebase open /dashboard' to see your accounts.")
		return nil
	}
	fmt.Fprintln(p.Out, "Not signed in. Run 'thrivebase signin' or 'thrivebase signup' to get started.")
	return nil
}

func (p *Pages) dashboard(ctx context.Context, _ router.Location) error {
	s := p.Session.Snapshot()
	fmt.Fprintf(p.Out, "Dashboard - %s\n\n", displayEmail(s.User))

	institutions := p.Bank.ConnectedInstitutions(ctx)
	summary := p.Bank.AccountSummary(ctx)

	if err := p.Bank.Err(); err != nil {
		fmt.Fprintf(p.Out, "Warning: %v\n\n", err)
	}

	if len(institutions) == 0 && len(summary.Accounts) == 0 {
		fmt.Fprintln(p.Out, "No bank accounts linked yet. Run 'thrivebase link' to connect one.")
		return nil
	}

	fmt.Fprintln(p.Out, "Connected institutions:")
	if err := PrintInstitutions(p.Out, institutions); err != nil {
		return err
	}
	fmt.Fprintln(p.Out)

	return PrintSummary(p.Out, summary)
}

func (p *Pages) signIn(_ context.Context, loc router.Location) error {
	redirect := loc.Query.Get(router.RedirectParam)
	if redirect != "" {
		fmt.Fprintf(p.Out, "Sign in required to open %s.\n", redirect)
		fmt.Fprintf(p.Out, "Run 'thrivebase signin --redirect %s'.\n", redirect)
		return nil
	}
	fmt.Fprintln(p.Out, "Sign in required. Run 'thrivebase signin'.")
	return nil
}

func (p *Pages) signUp(_ context.Context, _ router.Location) error {
	fmt.Fprintln(p.Out, "Create your ThriveBase account:")
	fmt.Fprintln(p.Out, "  thrivebase signup --email you@example.com")
	fmt.Fprintln(p.Out, "  thrivebase signin-google")
	return nil
}

func (p *Pages) profile(_ context.Context, _ router.Location) error {
	user := p.Session.Snapshot().User
	if user == nil {
		fmt.Fprintln(p.Out, "Profile unavailable.")
		return nil
	}

	keys := make([]string, 0, len(user))
	for k := range user {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(p.Out, "Profile")
	for _, k := range keys {
		fmt.Fprintf(p.Out, "  %-12s %v\n", k+":", user[k])
	}
	return nil
}

func (p *Pages) terms(_ context.Context, _ router.Location) error {
	fmt.Fprintln(p.Out, "Terms of Service")
	fmt.Fprintf(p.Out, "Read the full terms at %s/terms\n", p.WebsiteURL)
	return nil
}

func (p *Pages) privacy(_ context.Context, _ router.Location) error {
	fmt.Fprintln(p.Out, "Privacy Policy")
	fmt.Fprintf(p.Out, "Read the full policy at %s/privacy\n", p.WebsiteURL)
	return nil
}

func displayEmail(user session.UserProfile) string {
	if email := user.Email(); email != "" {
		return email
	}
	return "unknown user"
}
