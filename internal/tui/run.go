package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/logging"
	"github.com/tturner/shellmux/internal/registry"
)

// Options configures the interactive console.
type Options struct {
	Config *config.Config
	Log    *logging.Logger

	// Connection details. An empty Target brings up the connect form.
	Target   string
	User     string
	Password string
	KeyFile  string
}

// Run connects to a target and starts the interactive console. It blocks
// until the user quits; the connection is closed on exit.
func Run(opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	params := ConnectParams{
		Target:   opts.Target,
		User:     opts.User,
		Password: opts.Password,
		KeyFile:  opts.KeyFile,
	}
	if params.Target == "" {
		var err error
		params, err = runConnectForm(params)
		if err != nil {
			return err
		}
	}

	addr, sshOpts := cfg.ResolveTarget(params.Target)
	if params.User != "" {
		sshOpts.User = params.User
	}
	if params.Password != "" {
		sshOpts.Password = params.Password
	}
	if params.KeyFile != "" {
		sshOpts.KeyFile = params.KeyFile
	}

	reg := registry.New(
		registry.WithIdleTimeout(cfg.IdleTimeout()),
		registry.WithLogger(log.Component("registry")),
	)
	defer func() { _, _ = reg.CloseAll() }()

	connID, err := reg.Create(context.Background(), addr, sshOpts, 0)
	if err != nil {
		return err
	}

	eng := engine.New(
		engine.WithStreamTimeout(cfg.StreamTimeout()),
		engine.WithLedgerCapacity(cfg.Engine.LedgerCapacity),
		engine.WithLogger(log.Component("engine")),
	)

	model := NewModel(eng, reg, connID, params.Target)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
