// Package store persists the agent's state document, a single string-keyed
// mapping of JSON-serializable values. Two implementations are provided:
//
//   - FileStore: one pretty-printed JSON file with whole-document overwrite
//     semantics, matching the original single-file memory layout.
//   - BadgerStore: an embedded BadgerDB keeping one entry per state key for
//     deployments that need durable, per-key writes.
//
// Both serialize mutations internally; cross-process coordination is out of
// scope for FileStore (last-writer-wins) and handled by transactions in
// BadgerStore.
package store
