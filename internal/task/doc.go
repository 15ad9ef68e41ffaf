// Package task implements the in-process task lifecycle: the task state
// machine, the pending queue and the dispatcher that moves tasks from pending
// to running while enforcing a worker ceiling.
//
// Each running task executes on its own goroutine; the worker ceiling is an
// admission-control count, not a pool size. Tasks announce their lifecycle
// through an embedded events.Subject, and the dispatcher observes the tasks it
// starts to reclaim capacity when they finish.
package task
