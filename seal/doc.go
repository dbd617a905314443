// Package seal holds the core's symmetric-envelope and signing primitives:
// AES-256-GCM bundles with base64 fields that travel inside JSON, a SHA3-512
// based rolling-key derivation for forward-secret key chains, and Ed25519
// signing of canonicalized JSON objects with a PEM-persisted keypair.
package seal
