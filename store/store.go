package store

import "fmt"

var (
	// ErrCorruptState is returned when the persisted state cannot be decoded.
	// The store never repairs a corrupt document implicitly; the operator has
	// to decide whether to restore or reset it.
	ErrCorruptState = fmt.Errorf("state document is not valid JSON")
)

// Store persists the agent's state document, a single mapping from string
// keys to arbitrary JSON-serializable values.
//
// Implementations must serialize Add internally so two in-process writers
// cannot lose each other's updates. Coordination across processes is out of
// scope; the file-backed implementation remains last-writer-wins there.
type Store interface {
	// Load returns the full current mapping.
	Load() (map[string]any, error)
	// Save overwrites the persisted document with the given mapping.
	Save(state map[string]any) error
	// Add sets a single key and persists the result.
	Add(key string, value any) error
}
