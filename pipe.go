package sandboxd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newPipe creates a unidirectional pipe with both ends close-on-exec, so
// unrelated forked children never inherit them. Ends that must cross a
// re-exec boundary are passed explicitly via ExtraFiles, which dups them
// without the flag in the child; a long-lived recipient that execs further
// children must set the flag again on its kept ends.
func newPipe() (r, w int, err error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, fmt.Errorf("create pipe: %w", err)
	}
	return p[0], p[1], nil
}

// readFull reads exactly len(buf) bytes from fd, retrying interrupted reads
// without bound and without dropping already-transferred bytes. A zero-byte
// read before the count is reached means the peer closed its write end; that
// is reported as ErrChannelClosed, never as silent success.
func readFull(fd int, buf []byte) error {
	idx := 0
	for idx < len(buf) {
		n, err := unix.Read(fd, buf[idx:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("read from pipe: %w", err)
		}
		if n == 0 {
			return ErrChannelClosed
		}
		idx += n
	}
	return nil
}

// writeFull writes all of buf to fd, retrying interrupted writes without
// bound and without resending already-transferred bytes.
func writeFull(fd int, buf []byte) error {
	idx := 0
	for idx < len(buf) {
		n, err := unix.Write(fd, buf[idx:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("write to pipe: %w", err)
		}
		idx += n
	}
	return nil
}
