// Package registry holds the named capabilities the core exposes over its
// invocation surfaces. Handlers take a JSON-shaped argument map and return a
// JSON-serializable result, so one registration works for the HTTP API, the
// task queue and direct callers alike.
package registry
