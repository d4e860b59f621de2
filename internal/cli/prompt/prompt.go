// Package prompt holds the interactive terminal prompts used by the CLI.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// ErrNotInteractive is returned when a prompt needs a terminal and stdin is not one
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Prompter asks the user for input
type Prompter interface {
	Interactive() bool
	Input(label string) (string, error)
	Password(label string) (string, error)
	Confirm(label string) (bool, error)
	SelectAccount(accounts []client.Account) (*client.Account, error)
}

// Terminal prompts on the process terminal
type Terminal struct{}

// Interactive reports whether stdin is a terminal (not piped)
func (Terminal) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Input reads a line of text
func (t Terminal) Input(label string) (string, error) {
	if !t.Interactive() {
		return "", ErrNotInteractive
	}

	p := promptui.Prompt{Label: label}
	value, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("input cancelled: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// Password reads a secret without echoing it
func (t Terminal) Password(label string) (string, error) {
	if !t.Interactive() {
		return "", ErrNotInteractive
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// Confirm asks a yes/no question; anything but yes is false
func (t Terminal) Confirm(label string) (bool, error) {
	if !t.Interactive() {
		return false, ErrNotInteractive
	}

	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// SelectAccount shows an interactive list of accounts
func (t Terminal) SelectAccount(accounts []client.Account) (*client.Account, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no linked accounts. Run 'thrivebase link' to connect a bank")
	}
	if !t.Interactive() {
		return nil, ErrNotInteractive
	}

	type accountOption struct {
		Label   string
		Account *client.Account
	}

	options := make([]accountOption, len(accounts))
	for i := range accounts {
		account := &accounts[i]
		options[i] = accountOption{
			Label:   AccountLabel(account),
			Account: account,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	p := promptui.Select{
		Label:     "Select an account",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("account selection cancelled: %w", err)
	}

	return options[index].Account, nil
}

// AccountLabel formats an account for display in a list
func AccountLabel(a *client.Account) string {
	kind := a.Type
	if a.Subtype != "" {
		kind = a.Subtype
	}
	if kind == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, kind)
}
