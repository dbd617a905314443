// Package gateway orchestrates one request through the agent core: audit the
// intake, call the completion backend, persist the result as the last
// response, audit the completion, return the result to the caller.
//
// The gateway deliberately reproduces the original behavior of rendering
// backend failures as "Error: ..." text and persisting them like any other
// completion. The structured failure is available to callers that hold the
// Completer; the gateway's own contract is plain text in, plain text out.
package gateway
