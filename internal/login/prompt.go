package login

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/elgendy/vsts-agent/internal/errors"
)

// Prompter asks the user for a missing value.
type Prompter interface {
	Input(title, placeholder string, secret bool) (string, error)
}

// HuhPrompter prompts with a huh form on the terminal.
type HuhPrompter struct{}

// Input shows a single required text input. Secret inputs are masked.
func (HuhPrompter) Input(title, placeholder string, secret bool) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", strings.ToLower(title))
			}
			return nil
		})
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrAuth,
			"Failed to get user input",
			"Pass the value with a flag instead, e.g. --url or --token")
	}
	return strings.TrimSpace(value), nil
}
