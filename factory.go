package sandboxd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// spawnLeader creates one sandbox leader process: a re-exec of this binary
// cloned straight into fresh IPC, UTS, and PID namespaces, so the returned
// pid is the leader as seen from this process's namespace while the leader
// itself is pid 1 of its own. The leader confirms completed setup (process
// naming, optional netns join) with a single status byte over a private
// handoff pipe created per invocation; a nonzero byte carries the leader's
// errno, a closed pipe means the leader died before finishing.
//
// Called serially by the service loop; the blocking handshake read is
// acceptable because the service has no other duties to interleave.
func spawnLeader(logger *slog.Logger, id, netnsPath string) (int, error) {
	readyR, readyW, err := newPipe()
	if err != nil {
		return 0, err
	}
	defer unix.Close(readyR)
	readyWFile := os.NewFile(uintptr(readyW), "sandboxd-ready-w")

	cmd := exec.Command(reexecPath)
	cmd.Env = childEnv(
		modeEnv+"="+modeLeader,
		sandboxIDEnv+"="+id,
		netnsEnv+"="+netnsPath,
	)
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readyWFile}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(unix.CLONE_NEWIPC | unix.CLONE_NEWUTS | unix.CLONE_NEWPID),
	}

	err = cmd.Start()
	readyWFile.Close()
	if err != nil {
		return 0, fmt.Errorf("fork sandbox leader: %w", err)
	}
	logger.Debug("forked sandbox leader", "pid", cmd.Process.Pid, "sandbox", id)

	var status [1]byte
	if err := readFull(readyR, status[:]); err != nil {
		if errors.Is(err, ErrChannelClosed) {
			return 0, fmt.Errorf("sandbox leader died during setup: %w", unix.ECHILD)
		}
		return 0, fmt.Errorf("read leader status: %w", err)
	}
	if status[0] != 0 {
		return 0, fmt.Errorf("leader namespace setup: %w", syscall.Errno(status[0]))
	}
	return cmd.Process.Pid, nil
}
