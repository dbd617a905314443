// Package schedule runs recurring background jobs at fixed intervals.
//
// The runner is deliberately minimal: an action runs, the runner waits the
// interval, the action runs again. There is no drift correction, no overlap
// prevention, no jitter and no priority. What the runner does add over a bare
// goroutine-and-sleep loop is a lifecycle: each job is bound to a context,
// can be cancelled through its handle, and a failing action terminates only
// that job with the error surfaced on Runner.Failures rather than vanishing.
//
// A terminated job is never restarted. Supervision-with-restart is a
// different tool and intentionally out of scope here.
package schedule
