// Package queue provides a priority task queue backed by a fixed worker
// pool. Tasks with a lower priority value run first; tasks at the same
// priority run in enqueue order. Shutdown drains queued work before
// releasing the workers.
package queue
