package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// KDF records how the envelope key was derived.
type KDF struct {
	Salt []byte `json:"salt"`
	Params
}

// Envelope is a sealed record. Byte fields are base64 encoded when the
// envelope is marshalled to JSON.
type Envelope struct {
	Header string `json:"header"`
	KDF    KDF    `json:"kdf"`
	IV     []byte `json:"iv"`
	Text   []byte `json:"text"`
}

// Cipher seals and opens envelopes under a password.
type Cipher struct {
	params Params
	log    *logrus.Entry
}

// NewCipher returns a Cipher deriving keys with p. When silent is true the
// cipher emits no diagnostics.
func NewCipher(p Params, silent bool) *Cipher {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.DebugLevel)
	if silent {
		logger.SetOutput(io.Discard)
	}
	return &Cipher{
		params: p,
		log:    logger.WithField("component", "crypto"),
	}
}

// Params returns the parameters used for new envelopes.
func (c *Cipher) Params() Params {
	return c.params
}

// Seal encrypts plaintext under password. label is stored in the envelope
// header and authenticated with the ciphertext.
func (c *Cipher) Seal(password string, plaintext []byte, label string) (*Envelope, error) {
	if err := c.params.Validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}

	key := c.deriveKey(password, salt, c.params)
	defer SecureWipe(key)

	text, iv, err := Encrypt(key, plaintext, []byte(label))
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"header": label, "bytes": len(plaintext)}).Debug("sealed envelope")

	return &Envelope{
		Header: label,
		KDF:    KDF{Salt: salt, Params: c.params},
		IV:     iv,
		Text:   text,
	}, nil
}

// Open decrypts env with password and returns the original plaintext.
func (c *Cipher) Open(password string, env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrDecryptionFailed
	}
	if err := env.KDF.Params.Validate(); err != nil {
		return nil, err
	}
	if len(env.KDF.Salt) == 0 {
		return nil, fmt.Errorf("%w: missing salt", ErrDecryptionFailed)
	}

	key := c.deriveKey(password, env.KDF.Salt, env.KDF.Params)
	defer SecureWipe(key)

	plaintext, err := Decrypt(key, env.Text, env.IV, []byte(env.Header))
	if err != nil {
		c.log.WithField("header", env.Header).WithError(err).Debug("failed to open envelope")
		return nil, err
	}
	return plaintext, nil
}

// deriveKey normalises password to NFC so that canonically equivalent
// input from different keyboards or terminals derives the same key.
func (c *Cipher) deriveKey(password string, salt []byte, p Params) []byte {
	pw := []byte(norm.NFC.String(password))
	defer SecureWipe(pw)
	return DeriveKey(pw, salt, p)
}
