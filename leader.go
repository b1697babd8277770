package sandboxd

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// leaderReadyFD is the handoff pipe write end, from ExtraFiles.
const leaderReadyFD = 3

// runLeader is the re-exec entry point of a sandbox leader. By the time it
// runs, the clone flags have already placed the process alone in fresh IPC
// and UTS namespaces and as pid 1 of a fresh PID namespace. What remains is
// observational naming, the optional network-namespace join, the ready
// handshake, and then suspending forever: the leader never exits on its own
// and is terminated only by an external signal from the sandbox teardown
// path.
func runLeader() int {
	// This goroutine was locked to the thread-group leader during package
	// initialization, so the setns in leaderSetup lands on the thread whose
	// namespaces /proc/<pid>/ns exposes.
	id := os.Getenv(sandboxIDEnv)
	netnsPath := os.Getenv(netnsEnv)

	status := byte(0)
	if err := leaderSetup(id, netnsPath); err != nil {
		fmt.Fprintf(os.Stderr, "sandboxd: leader %q setup: %v\n", id, err)
		status = leaderStatus(err)
	}
	if err := writeFull(leaderReadyFD, []byte{status}); err != nil {
		fmt.Fprintf(os.Stderr, "sandboxd: leader %q handshake: %v\n", id, err)
		return 1
	}
	unix.Close(leaderReadyFD)
	if status != 0 {
		return 1
	}

	// Anchor the namespace set without consuming CPU. Pause returns whenever
	// a signal is delivered to the process; anything fatal never comes back
	// here, anything else just pauses again.
	for {
		unix.Pause()
	}
}

// leaderSetup names the process after its sandbox and joins the given
// network namespace, leaving all other namespaces as established by clone.
func leaderSetup(id, netnsPath string) error {
	if err := setProcessTitle(fmt.Sprintf("[sandbox-%s]", id)); err != nil {
		// Naming is observational only; not worth failing the sandbox over.
		fmt.Fprintf(os.Stderr, "sandboxd: leader %q title: %v\n", id, err)
	}

	if netnsPath == "" {
		return nil
	}
	fd, err := unix.Open(netnsPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open netns %q: %w", netnsPath, err)
	}
	defer unix.Close(fd)
	if err := unix.Setns(fd, unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("join netns %q: %w", netnsPath, err)
	}
	return nil
}

// leaderStatus reduces a setup error to the single status byte of the ready
// handshake.
func leaderStatus(err error) byte {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno > 0 && errno < 256 {
		return byte(errno)
	}
	return byte(unix.EIO)
}
