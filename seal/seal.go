package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	nonceLen = 12
	tagLen   = 16
)

// ErrOpenFailed is returned when a bundle cannot be authenticated, covering
// both a wrong key and tampered contents.
var ErrOpenFailed = fmt.Errorf("seal: authentication failed")

// Bundle is the portable encrypted envelope: every field is base64 so the
// bundle can travel inside JSON documents and audit entries.
type Bundle struct {
	Alg   string `json:"alg"`
	Nonce string `json:"nonce"`
	Tag   string `json:"tag"`
	CT    string `json:"ct"`
	AAD   string `json:"aad"`
}

// Seal encrypts plaintext under a 32-byte key with AES-256-GCM. The optional
// associated data is authenticated but not encrypted and is carried in the
// bundle verbatim.
func Seal(key, plaintext, aad []byte) (*Bundle, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	return &Bundle{
		Alg:   "AES-GCM",
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Tag:   base64.StdEncoding.EncodeToString(tag),
		CT:    base64.StdEncoding.EncodeToString(ct),
		AAD:   base64.StdEncoding.EncodeToString(aad),
	}, nil
}

// Open decrypts a bundle produced by Seal.
func Open(key []byte, b *Bundle) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(b.Nonce)
	if err != nil {
		return nil, fmt.Errorf("seal: decode nonce: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(b.Tag)
	if err != nil {
		return nil, fmt.Errorf("seal: decode tag: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(b.CT)
	if err != nil {
		return nil, fmt.Errorf("seal: decode ciphertext: %w", err)
	}
	aad, err := base64.StdEncoding.DecodeString(b.AAD)
	if err != nil {
		return nil, fmt.Errorf("seal: decode aad: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, append(ct, tag...), aad)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plain, nil
}

// RollingKey derives the next 256-bit key in a forward-secret chain:
// SHA3-512(prev ‖ counter_be64 ‖ extra) truncated to 32 bytes. Deriving is
// one-way, so compromise of a later key does not reveal earlier ones.
func RollingKey(prev []byte, counter uint64, extra []byte) []byte {
	h := sha3.New512()
	h.Write(prev)

	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	h.Write(ctr[:])
	h.Write(extra)

	return h.Sum(nil)[:32]
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: init gcm: %w", err)
	}
	return aead, nil
}
