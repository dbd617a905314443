package keystore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/scrypt"
)

// File format v1: magic ‖ 16-byte salt ‖ 12-byte nonce ‖ AES-256-GCM
// ciphertext with the tag appended. The payload is the JSON encoding of the
// name→value map.
var magic = []byte("AKS1")

const (
	saltLen  = 16
	nonceLen = 12

	// scrypt work parameters, roughly 32 MiB of memory per derivation.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// PassphraseEnvVar is consulted when no passphrase is given explicitly.
const PassphraseEnvVar = "KEYSTORE_PASSPHRASE"

var (
	// ErrBadPassphrase is returned when decryption fails, which with GCM
	// covers both a wrong passphrase and a tampered file.
	ErrBadPassphrase = fmt.Errorf("keystore: wrong passphrase or corrupted file")
	// ErrBadFormat is returned when the file does not start with the
	// expected magic or is too short to contain a header.
	ErrBadFormat = fmt.Errorf("keystore: invalid file format")
	// ErrNoPassphrase is returned when no passphrase is available.
	ErrNoPassphrase = fmt.Errorf("keystore: missing passphrase, set " + PassphraseEnvVar)
)

// Store is an encrypted file of named secrets (API credentials). The whole
// map is decrypted into memory on first access and re-encrypted on every Set.
type Store struct {
	mu     sync.Mutex
	path   string
	cache  map[string]string
	loaded bool
}

// New creates a Store backed by the file at path. Nothing is read until the
// first operation that needs the contents.
func New(path string) *Store {
	return &Store{path: path, cache: map[string]string{}}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Set stores name→value and re-encrypts the file. The save is atomic
// (temp file then rename) so a crash cannot leave a half-written store.
func (s *Store) Set(name, value, passphrase string) error {
	passphrase, err := resolvePassphrase(passphrase)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(passphrase); err != nil {
		return err
	}
	s.cache[name] = value
	return s.saveLocked(passphrase)
}

// Get returns the value stored under name, or "" if absent.
func (s *Store) Get(name, passphrase string) (string, error) {
	passphrase, err := resolvePassphrase(passphrase)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(passphrase); err != nil {
		return "", err
	}
	return s.cache[name], nil
}

// Items returns a copy of all stored entries.
func (s *Store) Items(passphrase string) (map[string]string, error) {
	passphrase, err := resolvePassphrase(passphrase)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(passphrase); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out, nil
}

func resolvePassphrase(passphrase string) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if env := os.Getenv(PassphraseEnvVar); env != "" {
		return env, nil
	}
	return "", ErrNoPassphrase
}

func (s *Store) loadLocked(passphrase string) error {
	if s.loaded {
		return nil
	}

	blob, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		// First use: empty store in memory, written on first Set.
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read keystore: %w", err)
	}

	plain, err := decrypt(passphrase, blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, &s.cache); err != nil {
		return fmt.Errorf("decode keystore payload: %w", err)
	}
	s.loaded = true
	return nil
}

func (s *Store) saveLocked(passphrase string) error {
	payload, err := json.Marshal(s.cache)
	if err != nil {
		return fmt.Errorf("encode keystore payload: %w", err)
	}
	blob, err := encrypt(passphrase, payload)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create keystore dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace keystore: %w", err)
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(magic)+saltLen+nonceLen+len(plaintext)+aead.Overhead())
	blob = append(blob, magic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

func decrypt(passphrase string, blob []byte) ([]byte, error) {
	header := len(magic) + saltLen + nonceLen
	if len(blob) < header || !bytes.Equal(blob[:len(magic)], magic) {
		return nil, ErrBadFormat
	}
	salt := blob[len(magic) : len(magic)+saltLen]
	nonce := blob[len(magic)+saltLen : header]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, blob[header:], nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return aead, nil
}
