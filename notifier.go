package sandboxd

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Monitor is the consumed interface to the external monitor component that
// tracks per-process exit-status subscribers. A failure to notify is logged
// by the Notifier, never escalated.
type Monitor interface {
	NotifyByPid(pid, exitCode int) error
}

// Notifier consumes the main process's asynchronous signal stream. On each
// SIGCHLD it runs a reap pass and forwards every collected exit status to
// the Monitor; on SIGTERM or SIGINT it records receipt for the surrounding
// shutdown logic to observe, without forcing an exit itself.
type Notifier struct {
	logger  *slog.Logger
	monitor Monitor

	sigCh chan os.Signal
	quit  chan struct{}
	done  chan struct{}

	doneOnce sync.Once
	stopOnce sync.Once
}

// NewNotifier subscribes to SIGCHLD, SIGTERM, and SIGINT immediately, so no
// signal delivered between construction and Run is lost.
func NewNotifier(m Monitor, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		logger:  logger,
		monitor: m,
		sigCh:   make(chan os.Signal, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	signal.Notify(n.sigCh, unix.SIGCHLD, unix.SIGTERM, unix.SIGINT)
	return n
}

// Run consumes delivered signals until Stop is called. Run it on a dedicated
// goroutine.
func (n *Notifier) Run() {
	for {
		select {
		case <-n.quit:
			return
		case sig := <-n.sigCh:
			n.handle(sig)
		}
	}
}

func (n *Notifier) handle(sig os.Signal) {
	switch sig {
	case unix.SIGCHLD:
		reapAll(n.logger, func(pid, exitCode int) {
			n.logger.Debug("child exited", "pid", pid, "exit_code", exitCode)
			if err := n.monitor.NotifyByPid(pid, exitCode); err != nil {
				n.logger.Error("failed to deliver exit event", "pid", pid, "error", err)
			}
		})
	case unix.SIGTERM, unix.SIGINT:
		n.logger.Debug("received shutdown signal", "signal", sig)
		n.doneOnce.Do(func() { close(n.done) })
	default:
		n.logger.Warn("ignoring unexpected signal", "signal", sig)
	}
}

// Done is closed once a shutdown signal (SIGTERM or SIGINT) has been
// received.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

// Stop detaches the notifier from the process signal stream and ends Run.
// Idempotent.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		signal.Stop(n.sigCh)
		close(n.quit)
	})
}
