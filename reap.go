package sandboxd

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// reapAll collects every terminated child in one pass of non-blocking waits
// and invokes fn for each. Children that exited normally report their exit
// status; children terminated by a signal report 128+signal, the usual
// convention for carrying signal deaths through a plain exit-code channel.
//
// "No children" and "no pending status change" terminate the pass normally.
// Any other wait error is logged and stops the pass; the next SIGCHLD
// triggers a fresh one. The loop performs nothing beyond the non-blocking
// wait and the callback, so it is safe to drive straight from a signal
// delivery goroutine.
func reapAll(logger *slog.Logger, fn func(pid, exitCode int)) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return
		case err != nil:
			logger.Warn("wait failed during reap pass", "error", err)
			return
		case pid == 0:
			return
		case ws.Exited():
			fn(pid, ws.ExitStatus())
		case ws.Signaled():
			fn(pid, 128+int(ws.Signal()))
		default:
			// Stopped/continued notifications are not requested and not
			// interesting here.
		}
	}
}
