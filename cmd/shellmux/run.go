package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/metrics"
	"github.com/tturner/shellmux/internal/transport"
)

type runFlags struct {
	config          string
	target          string
	command         string
	cwd             string
	streamTimeoutMs int
	pollMs          int
	user            string
	password        string
	keyFile         string
	metricsFile     string
	logLevel        string
	logFile         string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a command on a remote host",
		Long: `Connect to a target over SSH and run a single command.

Commands that finish within the stream timeout print their full output and
exit with the remote exit code. Longer commands switch to a streaming
session: output is polled and printed incrementally until the command
completes. Ctrl-C terminates the session (exit code 130).

The target is an ssh:// URL, a user@host[:port] spec, or the name of a
target defined in the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.target == "" {
				return missingFlagError(cmd, "--target")
			}
			if flags.command == "" {
				return missingFlagError(cmd, "--command")
			}
			code, err := runOneShot(flags)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to config file")
	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "Target host (ssh:// URL, user@host[:port], or config target name)")
	cmd.Flags().StringVarP(&flags.command, "command", "c", "", "Command to run on the remote host")
	cmd.Flags().StringVar(&flags.cwd, "cwd", "", "Remote working directory")
	cmd.Flags().IntVar(&flags.streamTimeoutMs, "stream-timeout-ms", 0, "Milliseconds to wait before switching to streaming (default from config)")
	cmd.Flags().IntVar(&flags.pollMs, "poll-ms", 500, "Streaming output poll interval in milliseconds")
	cmd.Flags().StringVar(&flags.user, "user", "", "SSH username")
	cmd.Flags().StringVar(&flags.password, "password", "", "SSH password")
	cmd.Flags().StringVar(&flags.keyFile, "key-file", "", "SSH private key file")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-csv", "", "Write execution metrics to a CSV file")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (silent, error, info, verbose, debug)")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to a file")

	return cmd
}

func runOneShot(flags *runFlags) (int, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return 0, err
	}
	log, err := buildLogger(cfg, flags.logLevel, flags.logFile)
	if err != nil {
		return 0, err
	}
	defer log.Close()

	var sink *metrics.Sink
	engOpts := []engine.Option{
		engine.WithStreamTimeout(cfg.StreamTimeout()),
		engine.WithLogger(log.Component("engine")),
	}
	if flags.streamTimeoutMs > 0 {
		engOpts = append(engOpts, engine.WithStreamTimeout(time.Duration(flags.streamTimeoutMs)*time.Millisecond))
	}
	if flags.metricsFile != "" {
		sink = metrics.NewSink()
		engOpts = append(engOpts, engine.WithMetrics(sink))
	}
	eng := engine.New(engOpts...)

	addr, opts := cfg.ResolveTarget(flags.target)
	if flags.user != "" {
		opts.User = flags.user
	}
	if flags.password != "" {
		opts.Password = flags.password
	}
	if flags.keyFile != "" {
		opts.KeyFile = flags.keyFile
	}

	ssh, err := transport.ParseWithOptions(addr, opts)
	if err != nil {
		return 0, err
	}
	ctx := context.Background()
	if err := ssh.Connect(ctx); err != nil {
		return 0, fmt.Errorf("connect %s: %w", ssh.String(), err)
	}

	res, err := eng.Execute(ctx, ssh, engine.Request{
		Command:       flags.command,
		Cwd:           flags.cwd,
		Target:        flags.target,
		OwnConnection: true,
	})
	if err != nil {
		return 0, err
	}

	var code int
	if res.Classification == engine.Fast {
		fmt.Fprint(os.Stdout, res.Stdout)
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		code = res.ExitCode
	} else {
		code, err = streamToStdout(eng, res, time.Duration(flags.pollMs)*time.Millisecond)
		if err != nil {
			return 0, err
		}
	}

	if sink != nil {
		if err := sink.WriteCSVFile(flags.metricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: write metrics: %v\n", err)
		}
	}
	return code, nil
}

// streamToStdout polls a streaming session and prints output chunks until
// the command completes. Ctrl-C force-terminates the session.
func streamToStdout(eng *engine.Engine, res *engine.Result, poll time.Duration) (int, error) {
	fmt.Fprintf(os.Stderr, "still running, switched to streaming session %s\n", res.ID)
	if res.InitialOutput != "" {
		fmt.Fprint(os.Stdout, res.InitialOutput)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			eng.ForceTerminate(res.ID)
		case <-ticker.C:
		}

		out, rec, err := eng.Drain(res.ID)
		if err != nil {
			return 0, err
		}
		if out != "" {
			fmt.Fprint(os.Stdout, out)
		}
		if rec != nil {
			fmt.Fprintf(os.Stderr, "completed in %.2f seconds with exit code %d\n", rec.Runtime().Seconds(), rec.ExitCode)
			return rec.ExitCode, nil
		}
	}
}
