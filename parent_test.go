package sandboxd

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestMain dispatches re-exec child modes so that Start, which re-executes
// the test binary, lands in the subreaper service and leader entry points.
func TestMain(m *testing.M) {
	if MaybeChildInit() {
		return
	}
	os.Exit(m.Run())
}

func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root for namespace creation")
	}
}

// waitGone polls until pid is fully gone, i.e. reaped by its parent rather
// than lingering as a zombie.
func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("pid %d still present", pid)
}

func TestStartCreateAnchorsNamespaces(t *testing.T) {
	requireRoot(t)

	h, err := Start(testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Close()

	pid, err := h.Create("abc", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pid <= 1 {
		t.Fatalf("implausible leader pid %d", pid)
	}

	// The pid is addressable from this namespace.
	if err := unix.Kill(pid, 0); err != nil {
		t.Fatalf("leader not addressable: %v", err)
	}

	// The leader anchors fresh namespaces, none shared with this process.
	for _, ns := range []string{"pid", "ipc", "uts"} {
		mine, err := os.Readlink("/proc/self/ns/" + ns)
		if err != nil {
			t.Fatalf("readlink own %s ns: %v", ns, err)
		}
		theirs, err := os.Readlink(fmt.Sprintf("/proc/%d/ns/%s", pid, ns))
		if err != nil {
			t.Fatalf("readlink leader %s ns: %v", ns, err)
		}
		if mine == theirs {
			t.Errorf("leader shares the %s namespace with the caller", ns)
		}
	}

	// The leader never exits on its own.
	time.Sleep(200 * time.Millisecond)
	if err := unix.Kill(pid, 0); err != nil {
		t.Fatalf("leader did not stay alive: %v", err)
	}

	// A second request through the same handle is answered too.
	pid2, err := h.Create("def", "")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if pid2 == pid {
		t.Errorf("second leader reused pid %d", pid)
	}

	// Teardown is an external signal; the service reaps the remains.
	for _, p := range []int{pid, pid2} {
		if err := unix.Kill(p, unix.SIGKILL); err != nil {
			t.Errorf("kill leader %d: %v", p, err)
		}
		waitGone(t, p)
	}
}

// leaderExtraFDs lists the open descriptors of pid beyond stdio, with their
// link targets for diagnostics.
func leaderExtraFDs(pid int) ([]string, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/fd", pid))
	if err != nil {
		return nil, err
	}
	var extra []string
	for _, e := range entries {
		if n, err := strconv.Atoi(e.Name()); err == nil && n <= 2 {
			continue
		}
		target, _ := os.Readlink(fmt.Sprintf("/proc/%d/fd/%s", pid, e.Name()))
		extra = append(extra, e.Name()+" -> "+target)
	}
	return extra, nil
}

func TestLeaderInheritsNoChannelEnds(t *testing.T) {
	requireRoot(t)

	h, err := Start(testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Close()

	pid, err := h.Create("fds", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The only descriptor beyond stdio a leader ever holds is the handoff
	// pipe write end, and it closes that itself right after the handshake.
	// In particular the service's channel ends must not appear here: a
	// leader holding the response write end would keep the channel open
	// past the service's death.
	deadline := time.Now().Add(2 * time.Second)
	for {
		extra, err := leaderExtraFDs(pid)
		if err != nil {
			t.Fatalf("list leader fds: %v", err)
		}
		if len(extra) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("leader kept descriptors beyond stdio: %v", extra)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		t.Errorf("kill leader: %v", err)
	}
	waitGone(t, pid)
}

func TestStartCreateJoinsNetns(t *testing.T) {
	requireRoot(t)

	h, err := Start(testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Close()

	// Carve out a distinct network namespace on a pinned thread and hand
	// its /proc path to the service. The goroutine stays parked until the
	// leader has joined, keeping the namespace referenced; the locked
	// thread dies with the goroutine.
	type nsref struct{ path, ident string }
	refCh := make(chan nsref, 1)
	errCh := make(chan error, 1)
	release := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		if err := unix.Unshare(unix.CLONE_NEWNET); err != nil {
			errCh <- err
			return
		}
		path := fmt.Sprintf("/proc/%d/task/%d/ns/net", os.Getpid(), unix.Gettid())
		ident, err := os.Readlink(path)
		if err != nil {
			errCh <- err
			return
		}
		refCh <- nsref{path: path, ident: ident}
		<-release
	}()

	var ref nsref
	select {
	case err := <-errCh:
		t.Fatalf("prepare netns: %v", err)
	case ref = <-refCh:
	}

	pid, err := h.Create("net", ref.path)
	close(release)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := os.Readlink(fmt.Sprintf("/proc/%d/ns/net", pid))
	if err != nil {
		t.Fatalf("readlink leader net ns: %v", err)
	}
	if got != ref.ident {
		t.Errorf("leader net ns: got %s, want %s", got, ref.ident)
	}
	mine, err := os.Readlink("/proc/self/ns/net")
	if err != nil {
		t.Fatalf("readlink own net ns: %v", err)
	}
	if got == mine {
		t.Errorf("leader still shares the caller's network namespace")
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		t.Errorf("kill leader: %v", err)
	}
	waitGone(t, pid)
}

func TestStartCreateReportsNetnsFailure(t *testing.T) {
	requireRoot(t)

	h, err := Start(testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Close()

	_, err = h.Create("bad", "/nonexistent/netns/handle")
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("got %v, want ErrCreateFailed", err)
	}
	var ce *CreateError
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a *CreateError", err)
	}
	if ce.Errno != unix.ENOENT {
		t.Errorf("errno: got %v, want ENOENT", ce.Errno)
	}

	// One failed request must not take the service down.
	pid, err := h.Create("ok", "")
	if err != nil {
		t.Fatalf("create after failure: %v", err)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		t.Errorf("kill leader: %v", err)
	}
	waitGone(t, pid)
}

func TestResponseValue(t *testing.T) {
	if got := responseValue(4321, nil); got != 4321 {
		t.Errorf("success: got %d, want 4321", got)
	}
	err := fmt.Errorf("leader namespace setup: %w", unix.ENOENT)
	if got := responseValue(0, err); got != -int32(unix.ENOENT) {
		t.Errorf("errno failure: got %d, want %d", got, -int32(unix.ENOENT))
	}
	if got := responseValue(0, errors.New("opaque")); got != -int32(unix.EIO) {
		t.Errorf("opaque failure: got %d, want %d", got, -int32(unix.EIO))
	}
}
