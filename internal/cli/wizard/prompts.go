// Package wizard provides interactive prompts for CLI commands.
package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Summary describes a pending provisioning run.
type Summary struct {
	Repo      string
	BoardName string
	Issues    int
	Labels    int
	Phases    int
	Auth      string
}

// Describe renders the summary shown above the confirmation.
func Describe(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", s.Repo)
	fmt.Fprintf(&b, "Board: %s (new)\n", s.BoardName)
	fmt.Fprintf(&b, "Issues: %d\n", s.Issues)
	fmt.Fprintf(&b, "Labels: %d\n", s.Labels)
	fmt.Fprintf(&b, "Roadmap phases: %d", s.Phases)
	if s.Auth != "" {
		fmt.Fprintf(&b, "\nAuthentication: %s", s.Auth)
	}
	return b.String()
}

// ConfirmProvision asks the user to approve the run. It returns false when
// the user declines.
func ConfirmProvision(s Summary) (bool, error) {
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Provision execution plan").
				Description(Describe(s)),

			huh.NewConfirm().
				Title("Create these resources on GitHub?").
				Affirmative("Provision").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt cancelled: %w", err)
	}

	return confirmed, nil
}
