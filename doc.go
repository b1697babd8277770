// Package sandboxd implements the process-lifecycle bootstrap for a
// container-sandbox runtime: a long-lived subreaper process that creates
// namespace-isolated sandbox leader processes on demand, and the fixed-frame
// pipe protocol the main program uses to request them.
//
// The main program calls Start once, early in main, to spawn the subreaper
// service and obtain a Handle. Each subsequent Handle.Create sends one
// request frame through the handle; the service creates one leader process
// anchored in fresh IPC, UTS, and PID namespaces (optionally joined to an
// existing network namespace) and answers with the leader's pid. The leader
// suspends itself forever and exists only so that workload processes can
// later attach to its namespaces by pid.
//
// Because Go cannot fork, every fork point of the design is a re-exec of
// /proc/self/exe; binaries embedding this package must dispatch re-exec
// child modes before any other initialization:
//
//	func main() {
//	    if sandboxd.MaybeChildInit() {
//	        return
//	    }
//	    // ... rest of main
//	}
//
// Exit statuses of reaped children are forwarded to a Monitor by the
// Notifier, using the usual 128+signal convention for signal deaths.
//
// Linux only.
package sandboxd
