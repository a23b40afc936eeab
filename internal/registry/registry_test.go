package registry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	muxerrors "github.com/tturner/shellmux/internal/errors"
	"github.com/tturner/shellmux/internal/transport"
)

// fakeConn is a scriptable transport for registry tests.
type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	execFn   func(command, cwd string, stdout, stderr io.Writer) (int, error)
	putErr   error
	getErr   error
	puts     []string
	gets     []string
	closeErr error
}

func (f *fakeConn) Connect(ctx context.Context) error { return nil }

func (f *fakeConn) Exec(ctx context.Context, command, cwd string) (int, string, string, error) {
	var stdout, stderr bytes.Buffer
	code, err := f.ExecStream(ctx, command, cwd, &stdout, &stderr)
	return code, stdout.String(), stderr.String(), err
}

func (f *fakeConn) ExecStream(ctx context.Context, command, cwd string, stdout, stderr io.Writer) (int, error) {
	if f.execFn != nil {
		return f.execFn(command, cwd, stdout, stderr)
	}
	io.WriteString(stdout, "ok\n")
	return 0, nil
}

func (f *fakeConn) Put(ctx context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, remotePath)
	return f.putErr
}

func (f *fakeConn) Get(ctx context.Context, remotePath, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, remotePath)
	return f.getErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) String() string { return "fake" }

func passwordOpts() transport.SSHOptions {
	return transport.SSHOptions{Password: "s3cret"}
}

// newTestRegistry wires a registry to fake dialing: each Create hands out
// the next scripted connection, or a fresh default one.
func newTestRegistry(t *testing.T, conns ...*fakeConn) *Registry {
	t.Helper()
	next := 0

	r := New()
	r.dial = func(ctx context.Context, target string, opts transport.SSHOptions) (transport.Transport, error) {
		var c *fakeConn
		if next < len(conns) {
			c = conns[next]
		} else {
			c = &fakeConn{}
		}
		next++
		return c, nil
	}
	return r
}

func TestCreate_RequiresCredentials(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(context.Background(), "build-03", transport.SSHOptions{}, 0)
	if err == nil {
		t.Fatal("Create() should fail without credentials")
	}
	if !muxerrors.IsAuthentication(err) {
		t.Errorf("error = %v, want AuthenticationError", err)
	}
}

func TestCreate_HandshakeFailure(t *testing.T) {
	r := New()
	r.dial = func(ctx context.Context, target string, opts transport.SSHOptions) (transport.Transport, error) {
		return nil, errors.New("ssh: handshake failed")
	}

	_, err := r.Create(context.Background(), "build-03", passwordOpts(), 0)
	if !muxerrors.IsAuthentication(err) {
		t.Errorf("error = %v, want AuthenticationError wrapping the handshake failure", err)
	}
}

func TestRunAndList(t *testing.T) {
	conn := &fakeConn{execFn: func(command, cwd string, stdout, stderr io.Writer) (int, error) {
		io.WriteString(stdout, "linux\n")
		return 0, nil
	}}
	r := newTestRegistry(t, conn)

	id, err := r.Create(context.Background(), "build-03", passwordOpts(), 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(id, "ssh-build-03-") {
		t.Errorf("id = %q, want target-derived prefix", id)
	}

	res, err := r.Run(context.Background(), id, "uname", "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "linux\n" || res.ExitCode != 0 {
		t.Errorf("Run() = %+v, want stdout linux, exit 0", res)
	}

	infos := r.List()
	if len(infos) != 1 || infos[0].ID != id {
		t.Errorf("List() = %+v, want the created session", infos)
	}
}

func TestRun_UnknownSession(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Run(context.Background(), "ssh-nope", "uname", "")
	if !muxerrors.IsUnknownSession(err) {
		t.Errorf("error = %v, want UnknownSessionError", err)
	}
}

func TestRun_ExecutionError(t *testing.T) {
	conn := &fakeConn{execFn: func(command, cwd string, stdout, stderr io.Writer) (int, error) {
		return -1, errors.New("ssh: channel open failed")
	}}
	r := newTestRegistry(t, conn)

	id, _ := r.Create(context.Background(), "h", passwordOpts(), 0)
	_, err := r.Run(context.Background(), id, "uname", "")
	if err == nil {
		t.Fatal("Run() should surface invocation failures")
	}
	var execErr *muxerrors.ExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("error = %v, want ExecutionError", err)
	}
}

func TestUploadDownload(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(t, conn)
	id, _ := r.Create(context.Background(), "h", passwordOpts(), 0)

	if err := r.Upload(context.Background(), id, "/tmp/a", "/srv/a"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := r.Download(context.Background(), id, "/srv/b", "/tmp/b"); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(conn.puts) != 1 || conn.puts[0] != "/srv/a" {
		t.Errorf("puts = %v, want [/srv/a]", conn.puts)
	}
	if len(conn.gets) != 1 || conn.gets[0] != "/srv/b" {
		t.Errorf("gets = %v, want [/srv/b]", conn.gets)
	}

	conn.putErr = errors.New("permission denied")
	err := r.Upload(context.Background(), id, "/tmp/a", "/srv/a")
	var terr *muxerrors.TransferError
	if !errors.As(err, &terr) {
		t.Errorf("error = %v, want TransferError", err)
	}
}

func TestTransfer_UnknownSession(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Upload(context.Background(), "ssh-nope", "a", "b"); !muxerrors.IsUnknownSession(err) {
		t.Errorf("Upload error = %v, want UnknownSessionError", err)
	}
	if err := r.Download(context.Background(), "ssh-nope", "a", "b"); !muxerrors.IsUnknownSession(err) {
		t.Errorf("Download error = %v, want UnknownSessionError", err)
	}
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(t, conn)
	id, _ := r.Create(context.Background(), "h", passwordOpts(), 0)

	if err := r.Close(id); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.isClosed() {
		t.Error("Close() should release the connection")
	}
	if err := r.Close(id); !muxerrors.IsUnknownSession(err) {
		t.Errorf("second Close() error = %v, want UnknownSessionError", err)
	}
	if _, err := r.Run(context.Background(), id, "uname", ""); !muxerrors.IsUnknownSession(err) {
		t.Errorf("Run() after Close() error = %v, want UnknownSessionError", err)
	}
}

func TestIdleEviction(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(t, conn)

	id, err := r.Create(context.Background(), "h", passwordOpts(), 40*time.Millisecond)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !conn.isClosed() {
		time.Sleep(5 * time.Millisecond)
	}
	if !conn.isClosed() {
		t.Fatal("idle timer should have closed the connection")
	}

	if _, err := r.Run(context.Background(), id, "uname", ""); !muxerrors.IsUnknownSession(err) {
		t.Errorf("Run() after eviction error = %v, want UnknownSessionError", err)
	}
}

func TestActivityPostponesEviction(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(t, conn)

	id, err := r.Create(context.Background(), "h", passwordOpts(), 120*time.Millisecond)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Keep touching the session well past the original deadline.
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		if _, err := r.Run(context.Background(), id, "uname", ""); err != nil {
			t.Fatalf("Run() during activity error = %v (iteration %d)", err, i)
		}
	}
	if conn.isClosed() {
		t.Error("active session must not be evicted")
	}

	// Quiet now: the full idle window applies from the last use.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !conn.isClosed() {
		time.Sleep(5 * time.Millisecond)
	}
	if !conn.isClosed() {
		t.Error("session should be evicted once idle")
	}
}

func TestBorrow(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(t, conn)
	id, _ := r.Create(context.Background(), "build-03", passwordOpts(), 0)

	got, target, err := r.Borrow(id)
	if err != nil {
		t.Fatalf("Borrow() error = %v", err)
	}
	if got != transport.Transport(conn) {
		t.Error("Borrow() should hand back the registry's connection")
	}
	if target != "build-03" {
		t.Errorf("target = %q, want build-03", target)
	}

	if _, _, err := r.Borrow("ssh-nope"); !muxerrors.IsUnknownSession(err) {
		t.Errorf("Borrow(unknown) error = %v, want UnknownSessionError", err)
	}
}

func TestCloseAll(t *testing.T) {
	bad := &fakeConn{closeErr: errors.New("already gone")}
	good1 := &fakeConn{}
	good2 := &fakeConn{}
	r := newTestRegistry(t, good1, bad, good2)

	for i := 0; i < 3; i++ {
		if _, err := r.Create(context.Background(), "h", passwordOpts(), 0); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	closed, err := r.CloseAll()
	if closed != 2 {
		t.Errorf("closed = %d, want 2 clean closes", closed)
	}
	if err == nil {
		t.Error("CloseAll() should report the first failure")
	}
	if len(r.List()) != 0 {
		t.Error("CloseAll() should empty the registry even on partial failure")
	}
	if !good1.isClosed() || !good2.isClosed() || !bad.isClosed() {
		t.Error("CloseAll() should attempt every session")
	}
}
