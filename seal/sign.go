package seal

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/goccy/go-json"
)

const (
	privKeyFile = "privkey.pem"
	pubKeyFile  = "pubkey.pem"
)

// Signer signs and verifies JSON objects with an Ed25519 keypair persisted
// as PEM files. The payload is rendered in a fixed canonical form before
// signing (sorted keys, ", " and ": " separators, ASCII-only escapes), so
// logically equal objects produce equal signatures and independently
// produced canonical blobs verify against signatures made here.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// LoadSigner loads the keypair from dir, generating and persisting a new one
// if none exists yet.
func LoadSigner(dir string) (*Signer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("seal: create keys dir: %w", err)
	}

	privPath := filepath.Join(dir, privKeyFile)
	pubPath := filepath.Join(dir, pubKeyFile)

	if _, err := os.Stat(privPath); os.IsNotExist(err) {
		if err := generateKeypair(privPath, pubPath); err != nil {
			return nil, err
		}
	}

	priv, err := readPrivateKey(privPath)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// SignJSON returns the base64 Ed25519 signature of the canonical encoding of obj.
func (s *Signer) SignJSON(obj map[string]any) (string, error) {
	blob, err := canonicalize(obj)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(s.priv, blob)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyJSON reports whether b64sig is a valid signature of obj.
func (s *Signer) VerifyJSON(obj map[string]any, b64sig string) bool {
	blob, err := canonicalize(obj)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(b64sig)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.pub, blob, sig)
}

func canonicalize(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, obj); err != nil {
		return nil, fmt.Errorf("seal: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeCanonical writes v in the signing wire form: object keys sorted,
// items joined with ", ", keys and values with ": ", and strings escaped
// down to ASCII. Values outside the JSON data model are rejected.
func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		encodeCanonicalString(buf, t)
	case json.Number:
		buf.WriteString(t.String())
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(t, 10))
	case float64:
		return encodeCanonicalFloat(buf, t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			encodeCanonicalString(buf, k)
			buf.WriteString(": ")
			if err := encodeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

func encodeCanonicalFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Integral floats keep a trailing ".0" to stay distinct from integers.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	buf.WriteString(s)
	return nil
}

func encodeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 || r > 0x7e {
				if r > 0xffff {
					hi, lo := utf16.EncodeRune(r)
					fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
				} else {
					fmt.Fprintf(buf, `\u%04x`, r)
				}
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func generateKeypair(privPath, pubPath string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("seal: generate keypair: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("seal: encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("seal: encode public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("seal: write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("seal: write public key: %w", err)
	}
	return nil
}

func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seal: read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("seal: private key is not PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("seal: parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("seal: private key is not ed25519")
	}
	return priv, nil
}
