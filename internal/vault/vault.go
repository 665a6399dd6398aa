// Package vault encrypts the two personally identifying student fields
// (display name and card identifier) with AES-256-GCM. A single 32-byte
// master key is expanded with HKDF into an encryption subkey and a separate
// HMAC subkey used for the card fingerprint (blind index).
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length in bytes of the decoded master key.
const KeySize = 32

var (
	// ErrKeyMissing and ErrKeyMalformed are startup-fatal.
	ErrKeyMissing   = errors.New("vault: encryption key is missing")
	ErrKeyMalformed = errors.New("vault: encryption key is malformed")
	ErrCiphertext   = errors.New("vault: ciphertext is invalid")
)

// Vault holds the derived keys for one master key. It is safe for concurrent use.
type Vault struct {
	aead   cipher.AEAD
	macKey []byte
}

// New decodes a base64 master key (standard or URL alphabet) and derives the
// subkeys. An empty key yields ErrKeyMissing; anything that does not decode
// to exactly 32 bytes yields ErrKeyMalformed.
func New(encodedKey string) (*Vault, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return nil, ErrKeyMissing
	}
	master, err := decodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
	}
	if len(master) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrKeyMalformed, KeySize, len(master))
	}

	encKey, err := derive(master, "meal-plan/field-encryption")
	if err != nil {
		return nil, err
	}
	macKey, err := derive(master, "meal-plan/card-fingerprint")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}
	return &Vault{aead: aead, macKey: macKey}, nil
}

// GenerateKey returns a fresh random master key, base64 encoded.
func GenerateKey() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("vault: read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func decodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("not valid base64")
}

func derive(master []byte, info string) ([]byte, error) {
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("vault: derive %s: %w", info, err)
	}
	return out, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
// Every call uses a fresh nonce, so equal inputs give different outputs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or tampered input yields ErrCiphertext.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	ns := v.aead.NonceSize()
	if len(data) < ns+v.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrCiphertext)
	}
	plain, err := v.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(plain), nil
}

// Fingerprint returns the hex HMAC-SHA256 of the normalized card identifier.
// It is deterministic per key so it can back an index lookup.
func (v *Vault) Fingerprint(cardID string) string {
	mac := hmac.New(sha256.New, v.macKey)
	mac.Write([]byte(NormalizeCardID(cardID)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Reencrypt decrypts with from and seals again with to.
func Reencrypt(from, to *Vault, ciphertext string) (string, error) {
	plain, err := from.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return to.Encrypt(plain)
}

// NormalizeCardID upper-cases the identifier and strips spaces, colons and
// dashes, so "04 a1:b2" and "04A1B2" are the same card.
func NormalizeCardID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		switch r {
		case ' ', ':', '-', '\t', '\r', '\n':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Mask keeps the first four characters of a card identifier for log lines.
func Mask(cardID string) string {
	id := []rune(NormalizeCardID(cardID))
	if len(id) > 4 {
		id = id[:4]
	}
	return string(id) + "***"
}

// Keyring holds the vault currently in use. Rotation swaps it in place so
// in-flight readers keep a consistent key for the duration of their call.
type Keyring struct {
	cur atomic.Pointer[Vault]
}

// NewKeyring returns a keyring holding v.
func NewKeyring(v *Vault) *Keyring {
	k := &Keyring{}
	k.cur.Store(v)
	return k
}

// Current returns the active vault.
func (k *Keyring) Current() *Vault { return k.cur.Load() }

// Swap installs v as the active vault.
func (k *Keyring) Swap(v *Vault) { k.cur.Store(v) }
