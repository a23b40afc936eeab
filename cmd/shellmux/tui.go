package main

import (
	"github.com/spf13/cobra"
	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/logging"
	"github.com/tturner/shellmux/internal/tui"
)

type tuiFlags struct {
	config   string
	target   string
	user     string
	password string
	keyFile  string
	logFile  string
	logLevel string
}

func newTuiCmd() *cobra.Command {
	flags := &tuiFlags{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive session console",
		Long: `Open an interactive console against a single SSH target.

Commands typed at the prompt run adaptively: quick ones print inline,
long-running ones become streaming sessions listed in the session panel
with their output drained into the scrollback. Without --target a connect
form prompts for the connection details.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runTui(flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to config file")
	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "Target host (ssh:// URL, user@host[:port], or config target name)")
	cmd.Flags().StringVar(&flags.user, "user", "", "SSH username")
	cmd.Flags().StringVar(&flags.password, "password", "", "SSH password")
	cmd.Flags().StringVar(&flags.keyFile, "key-file", "", "SSH private key file")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to a file (console logging is disabled in the TUI)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level for the log file")

	return cmd
}

func runTui(flags *tuiFlags) error {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs only go to a file.
	log := logging.Discard()
	if flags.logFile != "" {
		log, err = buildLogger(cfg, flags.logLevel, flags.logFile)
		if err != nil {
			return err
		}
		defer log.Close()
	}

	return tui.Run(tui.Options{
		Config:   cfg,
		Log:      log,
		Target:   flags.target,
		User:     flags.user,
		Password: flags.password,
		KeyFile:  flags.keyFile,
	})
}
