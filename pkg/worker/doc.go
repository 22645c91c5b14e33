// Package worker drives a runtime from a command queue.
//
// A Worker turns runtime calls into queued commands (start a process,
// complete a task, cancel a process) and executes them one at a time with
// ProcessOne. Listeners use it to react to an event with another runtime
// call: they cannot call the runtime directly because they run while the
// engine holds its lock, but they can enqueue a command for later.
//
// The queue can be in-memory or durable (SQLite), so commands accepted
// before a restart are still executed afterwards.
package worker
