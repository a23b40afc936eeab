package main

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     func() *cobra.Command
		args    []string
		wantErr string
	}{
		{
			name:    "run missing target",
			cmd:     newRunCmd,
			args:    []string{"--command", "uptime"},
			wantErr: "required flag --target not set",
		},
		{
			name:    "run missing command",
			cmd:     newRunCmd,
			args:    []string{"--target", "admin@host"},
			wantErr: "required flag --command not set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestHandleHelpArg(t *testing.T) {
	cmd := newServeCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if handleHelpArg(cmd, nil) {
		t.Error("no args should not trigger help")
	}
	if !handleHelpArg(cmd, []string{"help"}) {
		t.Error("help arg should trigger help")
	}
	if handleHelpArg(cmd, []string{"other"}) {
		t.Error("non-help arg should not trigger help")
	}
}
