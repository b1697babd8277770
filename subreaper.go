package sandboxd

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setSubreaper marks the calling process as a subreaper: orphaned descendant
// processes are reparented to it instead of to pid 1. The flag is
// process-wide OS state with no teardown; it persists until process exit.
func setSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

// isSubreaper reports whether the calling process is currently a subreaper.
func isSubreaper() (bool, error) {
	var v int
	if err := unix.Prctl(unix.PR_GET_CHILD_SUBREAPER, uintptr(unsafe.Pointer(&v)), 0, 0, 0); err != nil {
		return false, err
	}
	return v == 1, nil
}
