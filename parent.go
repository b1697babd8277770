package sandboxd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// parentTitle is the display name of the subreaper service process.
const parentTitle = "[sandbox-parent]"

// ExtraFiles land at fd 3 and following in the re-exec child.
const (
	parentRequestFD  = 3
	parentResponseFD = 4
)

// Start spawns the subreaper service and returns the Handle for requesting
// sandbox leaders from it. Call it once, right after MaybeChildInit, before
// the sandbox-manager service loop begins accepting requests; the Handle
// must stay valid for the process's entire lifetime.
//
// The service process is a child of the caller; its eventual exit is reaped
// by the Notifier like any other child.
func Start(logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reqR, reqW, err := newPipe()
	if err != nil {
		return nil, err
	}
	respR, respW, err := newPipe()
	if err != nil {
		unix.Close(reqR)
		unix.Close(reqW)
		return nil, err
	}

	reqRFile := os.NewFile(uintptr(reqR), "sandboxd-request-r")
	respWFile := os.NewFile(uintptr(respW), "sandboxd-response-w")

	cmd := exec.Command(reexecPath)
	cmd.Env = childEnv(modeEnv + "=" + modeParent)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{reqRFile, respWFile}

	err = cmd.Start()
	// The service's pipe ends live on in the child; release this process's
	// copies either way.
	reqRFile.Close()
	respWFile.Close()
	if err != nil {
		unix.Close(reqW)
		unix.Close(respR)
		return nil, fmt.Errorf("fork subreaper service: %w", err)
	}
	logger.Debug("forked subreaper service", "pid", cmd.Process.Pid)

	return &Handle{reqW: reqW, respR: respR}, nil
}

// runParent is the re-exec entry point of the subreaper service.
func runParent() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := serveParent(logger); err != nil {
		logger.Error("subreaper service failed", "error", err)
		return 1
	}
	return 0
}

// serveParent runs the subreaper service: mark self as subreaper so orphaned
// descendants (sandbox leaders among them) are reparented here, reap them as
// they die, and serve fork requests one at a time for the lifetime of the
// main program. Exactly one request is in flight at any moment by
// construction; creation latency is serialized deliberately.
func serveParent(logger *slog.Logger) error {
	// The channel ends arrived via ExtraFiles, which strips close-on-exec;
	// restore it so the leaders exec'd below never inherit them. A leader
	// holding the response write end would keep Create callers blocked past
	// the service's own death.
	for _, fd := range []int{parentRequestFD, parentResponseFD} {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
			return fmt.Errorf("restore close-on-exec on channel fd %d: %w", fd, err)
		}
	}
	if err := setSubreaper(); err != nil {
		return fmt.Errorf("mark self as subreaper: %w", err)
	}
	if err := setProcessTitle(parentTitle); err != nil {
		logger.Warn("failed to set process title", "error", err)
	}

	sigCh := make(chan os.Signal, 64)
	signal.Notify(sigCh, unix.SIGCHLD)
	go func() {
		for range sigCh {
			reapAll(logger, func(pid, exitCode int) {
				logger.Debug("reaped child", "pid", pid, "exit_code", exitCode)
			})
		}
	}()

	var frame [requestFrameSize]byte
	for {
		if err := readFull(parentRequestFD, frame[:]); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				// Main program closed its end; nothing left to serve.
				return nil
			}
			return fmt.Errorf("receive request frame: %w", err)
		}

		id, netnsPath := decodeRequest(frame[:])
		pid, err := spawnLeader(logger, id, netnsPath)
		if err != nil {
			// Answer with a failure response and keep serving; a single bad
			// request must not take the whole service down.
			logger.Error("sandbox creation failed", "sandbox", id, "error", err)
		}

		resp := encodeResponse(responseValue(pid, err))
		if err := writeFull(parentResponseFD, resp[:]); err != nil {
			return fmt.Errorf("send response frame: %w", err)
		}
	}
}

// responseValue maps a factory result onto the wire: the pid on success, a
// negated errno on failure.
func responseValue(pid int, err error) int32 {
	if err == nil {
		return int32(pid)
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno == 0 {
		errno = unix.EIO
	}
	return -int32(errno)
}
