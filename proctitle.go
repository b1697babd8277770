package sandboxd

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// commLen is the kernel limit for /proc/self/comm, excluding the NUL.
const commLen = 15

// setProcessTitle rewrites how the current process appears in process
// listings: argv memory for /proc/self/cmdline, /proc/self/comm and
// PR_SET_NAME for the comm field. Purely observational; failures to update
// comm are reported but nothing depends on the name.
func setProcessTitle(title string) error {
	overwriteArgv(title)

	comm := title
	if len(comm) > commLen {
		comm = comm[:commLen]
	}
	if err := os.WriteFile("/proc/self/comm", []byte(comm), 0); err != nil {
		return fmt.Errorf("write /proc/self/comm: %w", err)
	}

	name := make([]byte, len(comm)+1)
	copy(name, comm)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&name[0])), 0, 0, 0); err != nil {
		return fmt.Errorf("prctl PR_SET_NAME: %w", err)
	}
	return nil
}

// overwriteArgv writes title over the argv memory the kernel handed to this
// process, so /proc/self/cmdline shows the full title rather than the
// 15-byte-truncated comm. os.Args is backed by that original memory, which
// makes the region addressable from Go without any prctl PR_SET_MM calls.
func overwriteArgv(title string) {
	if len(os.Args) == 0 || len(os.Args[0]) == 0 {
		return
	}

	start := unsafe.Pointer(unsafe.StringData(os.Args[0]))
	last := os.Args[len(os.Args)-1]
	end := unsafe.Add(unsafe.Pointer(unsafe.StringData(last)), len(last))
	total := int(uintptr(end) - uintptr(start))
	if total <= 0 {
		return
	}

	argv := unsafe.Slice((*byte)(start), total)
	for i := range argv {
		argv[i] = 0
	}

	n := min(len(title), total-1)
	copy(argv, title[:n])

	os.Args = []string{strings.Clone(title[:n])}
}
