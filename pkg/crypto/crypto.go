// Package crypto provides the symmetric encryption capability used to seal
// wallet records under a password.
//
// Records are encrypted with AES-256-GCM. The key is derived from the
// password with Argon2id using a fresh random salt for every sealed record,
// so two envelopes produced from the same password never share a key.
//
// # Security Features
//
//   - AES-256-GCM authenticated encryption, the envelope label bound as
//     additional data
//   - Argon2id key derivation (64MB memory, 3 iterations, 4 threads by default)
//   - Unicode NFC normalisation of passwords before derivation
//   - Secure memory wiping for derived keys
//
// # Example Usage
//
//	c := crypto.NewCipher(crypto.DefaultParams(), false)
//	env, err := c.Seal("password", plaintext, "Wallet info")
//	plaintext, err := c.Open("password", env)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following OWASP recommendations.
const (
	// Argon2Memory is the memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 3

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// SaltLength is the length of the per-envelope Argon2id salt.
	SaltLength = 16
)

// Upper bounds accepted for Argon2id parameters read from an envelope.
const (
	// MaxArgon2Memory is the largest memory cost in KiB (1GB).
	MaxArgon2Memory = 1 << 20

	// MaxArgon2Time is the largest number of iterations.
	MaxArgon2Time = 16

	// MaxArgon2Threads is the largest degree of parallelism.
	MaxArgon2Threads = 64
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 12 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 12 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrInvalidParams indicates Argon2id parameters that cannot derive a key.
	ErrInvalidParams = errors.New("crypto: invalid key derivation parameters")
)

// Params holds the Argon2id cost parameters. They are recorded in every
// envelope so a record can be opened after the defaults change.
type Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultParams returns the OWASP-recommended Argon2id parameters.
func DefaultParams() Params {
	return Params{Time: Argon2Time, Memory: Argon2Memory, Threads: Argon2Threads}
}

// Validate reports whether p can be used for key derivation. Costs above
// the Max constants are rejected so a stored envelope cannot make a
// derivation run for minutes or exhaust memory.
func (p Params) Validate() error {
	if p.Time == 0 || p.Threads == 0 || p.Memory < 8*uint32(p.Threads) ||
		p.Time > MaxArgon2Time || p.Memory > MaxArgon2Memory || p.Threads > MaxArgon2Threads {
		return fmt.Errorf("%w: time=%d memory=%d threads=%d", ErrInvalidParams, p.Time, p.Memory, p.Threads)
	}
	return nil
}

// DeriveKey derives a 256-bit encryption key from a password using Argon2id.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeyLength)
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A cryptographically secure random 12-byte nonce is generated for every
// call. additionalData is authenticated but not encrypted; the same bytes
// must be passed to Decrypt.
func Encrypt(key, plaintext, additionalData []byte) (ciphertext []byte, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	// authentication tag is appended to ciphertext
	ciphertext = gcm.Seal(nil, nonce, plaintext, additionalData)

	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM authenticated encryption.
//
// Returns ErrInvalidKeyLength, ErrInvalidNonceLength, ErrCiphertextTooShort
// or ErrDecryptionFailed when the tag does not verify (wrong key, tampered
// data or mismatched additional data).
func Decrypt(key, ciphertext, nonce, additionalData []byte) (plaintext []byte, err error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err = gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// keep b alive so the writes above are not elided
	runtime.KeepAlive(b)
}
