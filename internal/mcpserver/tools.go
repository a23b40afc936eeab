package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/registry"
	"github.com/tturner/shellmux/internal/transport"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(executeCommandTool(), s.handleExecuteCommand)
	s.mcpServer.AddTool(readOutputTool(), s.handleReadOutput)
	s.mcpServer.AddTool(forceTerminateTool(), s.handleForceTerminate)
	s.mcpServer.AddTool(listCommandsTool(), s.handleListCommands)
	s.mcpServer.AddTool(sshConnectTool(), s.handleSSHConnect)
	s.mcpServer.AddTool(sshRunTool(), s.handleSSHRun)
	s.mcpServer.AddTool(sshUploadTool(), s.handleSSHUpload)
	s.mcpServer.AddTool(sshDownloadTool(), s.handleSSHDownload)
	s.mcpServer.AddTool(sshDisconnectTool(), s.handleSSHDisconnect)
	s.mcpServer.AddTool(listConnectionsTool(), s.handleListConnections)
	s.mcpServer.AddTool(disconnectAllTool(), s.handleDisconnectAll)
}

// Tool definitions

func executeCommandTool() mcp.Tool {
	return mcp.NewTool("execute_command",
		mcp.WithDescription("Run a shell command on a remote host. Returns the full result if the command finishes quickly, otherwise a session id for incremental polling with read_output"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The shell command to execute"),
		),
		mcp.WithString("target",
			mcp.Description("Host to run on: a configured target name, ssh:// spec, or user@host (ignored when connection is set)"),
		),
		mcp.WithString("connection",
			mcp.Description("Id of a persistent connection from ssh_connect to reuse"),
		),
		mcp.WithString("cwd",
			mcp.Description("Remote working directory"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("How long to wait before switching to streaming mode (default: 2000)"),
		),
		mcp.WithString("user",
			mcp.Description("SSH username (ephemeral target only)"),
		),
		mcp.WithString("password",
			mcp.Description("SSH password (ephemeral target only)"),
		),
		mcp.WithString("key_file",
			mcp.Description("Path to an SSH private key (ephemeral target only)"),
		),
	)
}

func readOutputTool() mcp.Tool {
	return mcp.NewTool("read_output",
		mcp.WithDescription("Read output produced since the last read for a streaming command, or its completion report once it finished"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session id returned by execute_command"),
		),
	)
}

func forceTerminateTool() mcp.Tool {
	return mcp.NewTool("force_terminate",
		mcp.WithDescription("Stop tracking a streaming command (exit code 130). The remote process is not guaranteed to stop"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session id to terminate"),
		),
	)
}

func listCommandsTool() mcp.Tool {
	return mcp.NewTool("list_commands",
		mcp.WithDescription("List streaming commands still running in the background"),
	)
}

func sshConnectTool() mcp.Tool {
	return mcp.NewTool("ssh_connect",
		mcp.WithDescription("Open a persistent SSH connection that later commands and transfers can reuse"),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Configured target name, ssh:// spec, or user@host"),
		),
		mcp.WithString("user",
			mcp.Description("SSH username"),
		),
		mcp.WithString("password",
			mcp.Description("SSH password"),
		),
		mcp.WithString("key_file",
			mcp.Description("Path to an SSH private key"),
		),
		mcp.WithNumber("idle_minutes",
			mcp.Description("Close the connection after this many minutes without use (default: 30)"),
		),
	)
}

func sshRunTool() mcp.Tool {
	return mcp.NewTool("ssh_run",
		mcp.WithDescription("Run a command on a persistent connection, waiting for it to finish"),
		mcp.WithString("connection",
			mcp.Required(),
			mcp.Description("The connection id from ssh_connect"),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The shell command to execute"),
		),
		mcp.WithString("cwd",
			mcp.Description("Remote working directory"),
		),
	)
}

func sshUploadTool() mcp.Tool {
	return mcp.NewTool("ssh_upload",
		mcp.WithDescription("Upload a local file over a persistent connection"),
		mcp.WithString("connection",
			mcp.Required(),
			mcp.Description("The connection id from ssh_connect"),
		),
		mcp.WithString("local_path",
			mcp.Required(),
			mcp.Description("Local file to send"),
		),
		mcp.WithString("remote_path",
			mcp.Required(),
			mcp.Description("Destination path on the remote host"),
		),
	)
}

func sshDownloadTool() mcp.Tool {
	return mcp.NewTool("ssh_download",
		mcp.WithDescription("Download a remote file over a persistent connection"),
		mcp.WithString("connection",
			mcp.Required(),
			mcp.Description("The connection id from ssh_connect"),
		),
		mcp.WithString("remote_path",
			mcp.Required(),
			mcp.Description("Remote file to fetch"),
		),
		mcp.WithString("local_path",
			mcp.Required(),
			mcp.Description("Destination path on the local host"),
		),
	)
}

func sshDisconnectTool() mcp.Tool {
	return mcp.NewTool("ssh_disconnect",
		mcp.WithDescription("Close a persistent connection"),
		mcp.WithString("connection",
			mcp.Required(),
			mcp.Description("The connection id from ssh_connect"),
		),
	)
}

func listConnectionsTool() mcp.Tool {
	return mcp.NewTool("list_connections",
		mcp.WithDescription("List open persistent connections"),
	)
}

func disconnectAllTool() mcp.Tool {
	return mcp.NewTool("disconnect_all",
		mcp.WithDescription("Close every persistent connection (best effort)"),
	)
}

// Tool handlers

func (s *Server) handleExecuteCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command := mcp.ParseString(req, "command", "")
	if command == "" {
		return mcp.NewToolResultError("command is required"), nil
	}

	timeout := time.Duration(mcp.ParseInt(req, "timeout_ms", 0)) * time.Millisecond
	cwd := mcp.ParseString(req, "cwd", "")

	var (
		conn   transport.Transport
		target string
		owned  bool
	)

	if connID := mcp.ParseString(req, "connection", ""); connID != "" {
		var err error
		conn, target, err = s.registry.Borrow(connID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	} else {
		spec := mcp.ParseString(req, "target", "")
		if spec == "" {
			return mcp.NewToolResultError("either target or connection is required"), nil
		}

		addr, opts := s.cfg.ResolveTarget(spec)
		applyCredentialArgs(&opts, req)

		ssh, err := transport.ParseWithOptions(addr, opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := ssh.Connect(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("connect %s: %v", addr, err)), nil
		}
		conn, target, owned = ssh, spec, true
	}

	s.log.Info("execute %q on %s", command, target)

	res, err := s.engine.Execute(ctx, conn, engine.Request{
		Command:       command,
		Cwd:           cwd,
		Target:        target,
		StreamTimeout: timeout,
		OwnConnection: owned,
	})
	if err != nil {
		if owned {
			conn.Close()
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExecuteResult(res)), nil
}

func (s *Server) handleReadOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "session_id", "")
	if id == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	out, err := s.engine.ReadOutput(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleForceTerminate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "session_id", "")
	if id == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if !s.engine.ForceTerminate(id) {
		return mcp.NewToolResultError(fmt.Sprintf("no active session %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s terminated (exit code 130). Use read_output for the final report.", id)), nil
}

func (s *Server) handleListCommands(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatActiveCommands(s.engine.ListActive())), nil
}

func (s *Server) handleSSHConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := mcp.ParseString(req, "target", "")
	if spec == "" {
		return mcp.NewToolResultError("target is required"), nil
	}

	addr, opts := s.cfg.ResolveTarget(spec)
	applyCredentialArgs(&opts, req)
	idle := time.Duration(mcp.ParseInt(req, "idle_minutes", 0)) * time.Minute

	id, err := s.registry.Create(ctx, addr, opts, idle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Connected to %s\nConnection id: %s", spec, id)), nil
}

func (s *Server) handleSSHRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "connection", "")
	command := mcp.ParseString(req, "command", "")
	if id == "" || command == "" {
		return mcp.NewToolResultError("connection and command are required"), nil
	}

	res, err := s.registry.Run(ctx, id, command, mcp.ParseString(req, "cwd", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRunResult(res)), nil
}

func (s *Server) handleSSHUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "connection", "")
	local := mcp.ParseString(req, "local_path", "")
	remote := mcp.ParseString(req, "remote_path", "")
	if id == "" || local == "" || remote == "" {
		return mcp.NewToolResultError("connection, local_path, and remote_path are required"), nil
	}

	if err := s.registry.Upload(ctx, id, local, remote); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Uploaded %s to %s", local, remote)), nil
}

func (s *Server) handleSSHDownload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "connection", "")
	remote := mcp.ParseString(req, "remote_path", "")
	local := mcp.ParseString(req, "local_path", "")
	if id == "" || remote == "" || local == "" {
		return mcp.NewToolResultError("connection, remote_path, and local_path are required"), nil
	}

	if err := s.registry.Download(ctx, id, remote, local); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Downloaded %s to %s", remote, local)), nil
}

func (s *Server) handleSSHDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "connection", "")
	if id == "" {
		return mcp.NewToolResultError("connection is required"), nil
	}

	if err := s.registry.Close(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Connection %s closed", id)), nil
}

func (s *Server) handleListConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatConnections(s.registry.List())), nil
}

func (s *Server) handleDisconnectAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	closed, err := s.registry.CloseAll()
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Closed %d connections; some failed: %v", closed, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Closed %d connections", closed)), nil
}

// Helpers

// applyCredentialArgs layers per-call credentials over the configured
// defaults.
func applyCredentialArgs(opts *transport.SSHOptions, req mcp.CallToolRequest) {
	if v := mcp.ParseString(req, "user", ""); v != "" {
		opts.User = v
	}
	if v := mcp.ParseString(req, "password", ""); v != "" {
		opts.Password = v
	}
	if v := mcp.ParseString(req, "key_file", ""); v != "" {
		opts.KeyFile = v
	}
}

func formatExecuteResult(res *engine.Result) string {
	if res.Classification == engine.Streaming {
		var b strings.Builder
		fmt.Fprintf(&b, "Command is still running.\nSession id: %s\n", res.ID)
		b.WriteString("Poll with read_output; stop tracking with force_terminate.\n")
		if res.InitialOutput != "" {
			b.WriteString("\nInitial output:\n")
			b.WriteString(res.InitialOutput)
		}
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command completed with exit code %d\n", res.ExitCode)
	b.WriteString("\nOutput:\n")
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		b.WriteString("\n\nErrors:\n")
		b.WriteString(res.Stderr)
	}
	return b.String()
}

func formatRunResult(res *registry.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exit code: %d\n", res.ExitCode)
	b.WriteString("\nOutput:\n")
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		b.WriteString("\n\nErrors:\n")
		b.WriteString(res.Stderr)
	}
	return b.String()
}

func formatActiveCommands(active []engine.ActiveCommand) string {
	if len(active) == 0 {
		return "No commands running in the background."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d background command(s):\n", len(active))
	for _, a := range active {
		fmt.Fprintf(&b, "  %s  running %s  %q on %s\n",
			a.ID, a.Runtime.Round(time.Second), a.Command, a.Target)
	}
	return b.String()
}

func formatConnections(infos []registry.Info) string {
	if len(infos) == 0 {
		return "No open connections."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d open connection(s):\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(&b, "  %s  %s  idle %s\n",
			info.ID, info.Target, time.Since(info.LastUsed).Round(time.Second))
	}
	return b.String()
}
