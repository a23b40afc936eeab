package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/mcpserver"
	"github.com/tturner/shellmux/internal/metrics"
	"github.com/tturner/shellmux/internal/registry"
)

type serveFlags struct {
	config      string
	metricsFile string
	logLevel    string
	logFile     string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP interface over stdio",
		Long: `Run the MCP (Model Context Protocol) server on stdin/stdout.

Exposes adaptive command execution, streaming session management, and the
SSH connection registry as MCP tools. Logs go to stderr or the configured
log file; stdout carries only the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to config file")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-csv", "", "Write execution metrics to a CSV file on exit")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (silent, error, info, verbose, debug)")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to a file")

	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg, flags.logLevel, flags.logFile)
	if err != nil {
		return err
	}
	defer log.Close()

	sink := metrics.NewSink()
	eng := engine.New(
		engine.WithStreamTimeout(cfg.StreamTimeout()),
		engine.WithLedgerCapacity(cfg.Engine.LedgerCapacity),
		engine.WithLogger(log.Component("engine")),
		engine.WithMetrics(sink),
	)
	reg := registry.New(
		registry.WithIdleTimeout(cfg.IdleTimeout()),
		registry.WithLogger(log.Component("registry")),
	)

	log.Info("shellmux %s serving MCP on stdio", version)
	srv := mcpserver.New(eng, reg, cfg, log, version)
	serveErr := srv.ServeStdio()

	if closed, err := reg.CloseAll(); err != nil {
		log.Error("close connections: %v (%d closed)", err, closed)
	}
	if flags.metricsFile != "" && sink.Count() > 0 {
		if err := sink.WriteCSVFile(flags.metricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: write metrics: %v\n", err)
		}
	}
	return serveErr
}
