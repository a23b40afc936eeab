package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ConnectParams holds the values collected by the connect form.
type ConnectParams struct {
	Target   string
	User     string
	Password string
	KeyFile  string
}

// runConnectForm prompts for connection details. Fields already filled in
// defaults are kept as the form's initial values.
func runConnectForm(defaults ConnectParams) (ConnectParams, error) {
	p := defaults

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target").
				Description("ssh:// URL, user@host[:port], or config target name").
				Value(&p.Target).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("target is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("User").
				Description("SSH username (optional if in the target spec)").
				Value(&p.User),
			huh.NewInput().
				Title("Password").
				Description("Leave empty to use key file or SSH agent").
				EchoMode(huh.EchoModePassword).
				Value(&p.Password),
			huh.NewInput().
				Title("Key file").
				Description("Path to a private key (optional)").
				Value(&p.KeyFile),
		),
	)

	if err := form.Run(); err != nil {
		return p, err
	}
	p.Target = strings.TrimSpace(p.Target)
	return p, nil
}
