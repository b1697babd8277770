package sandboxd

import (
	"os"
	"runtime"
	"strings"
)

// Re-exec plumbing. Go cannot fork, so both the subreaper service and every
// sandbox leader are re-executions of the current binary, selected by an
// environment marker and handed their pipe ends as ExtraFiles (fd 3 and up).
const (
	reexecPath = "/proc/self/exe"

	envPrefix    = "_SANDBOXD_"
	modeEnv      = envPrefix + "MODE"
	sandboxIDEnv = envPrefix + "SANDBOX_ID"
	netnsEnv     = envPrefix + "NETNS"

	modeParent = "parent"
	modeLeader = "leader"
)

// Joining a network namespace applies to a single thread. Locking during
// package initialization guarantees the main goroutine, and with it
// runLeader, stays on the initial thread, the thread-group leader whose
// namespaces /proc/<pid>/ns exposes.
func init() {
	if os.Getenv(modeEnv) == modeLeader {
		runtime.LockOSThread()
	}
}

// osExit is swapped out in tests.
var osExit = os.Exit

// MaybeChildInit checks whether the current process was re-executed as a
// sandboxd helper and, if so, runs it to completion and exits. Call this at
// the very beginning of main(), before any other initialization:
//
//	func main() {
//	    if sandboxd.MaybeChildInit() {
//	        return
//	    }
//	    // ... rest of main
//	}
func MaybeChildInit() bool {
	switch os.Getenv(modeEnv) {
	case modeParent:
		osExit(runParent())
		return true // unreachable, but satisfies the compiler
	case modeLeader:
		osExit(runLeader())
		return true
	}
	return false
}

// childEnv builds the environment for a re-exec child: the current
// environment with any stale sandboxd markers stripped, plus the given
// marker pairs.
func childEnv(pairs ...string) []string {
	environ := os.Environ()
	env := make([]string, 0, len(environ)+len(pairs))
	for _, kv := range environ {
		if strings.HasPrefix(kv, envPrefix) {
			continue
		}
		env = append(env, kv)
	}
	return append(env, pairs...)
}
