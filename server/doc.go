// Package server exposes the agent core over HTTP: forwarding prompts to the
// gateway, tailing the audit log, and listing, executing, or enqueueing the
// handlers held in the registry. All dependencies are injected; routes whose
// dependency is absent answer 404 rather than panicking.
package server
