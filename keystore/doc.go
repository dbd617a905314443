// Package keystore persists API credentials in a single passphrase-encrypted
// file. The key is derived with scrypt and the payload sealed with
// AES-256-GCM; the on-disk layout is magic ‖ salt ‖ nonce ‖ ciphertext+tag.
// The passphrase comes from the KEYSTORE_PASSPHRASE environment variable
// unless supplied explicitly (as the keys CLI does).
package keystore
