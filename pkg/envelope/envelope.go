// Package envelope converts wallet records between their plaintext JSON form
// and the text-safe form kept by a storage backend: the record is sealed
// under a password, the sealed envelope is marshalled to JSON and the JSON
// text is base64 encoded.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lorena-ssi/wallet-fs/pkg/crypto"
)

// Labels stored in the envelope header of each wallet record.
const (
	LabelInfo = "Wallet info"
	LabelData = "Wallet data"
)

// ErrDecryption indicates a wrong password or a malformed envelope.
var ErrDecryption = errors.New("envelope: decryption failed")

// Sealer is the symmetric encryption capability consumed by the codec.
// *crypto.Cipher implements it.
type Sealer interface {
	Seal(password string, plaintext []byte, label string) (*crypto.Envelope, error)
	Open(password string, env *crypto.Envelope) ([]byte, error)
}

// Codec encodes and decodes stored wallet records.
type Codec struct {
	sealer Sealer
}

// New returns a Codec sealing records with s.
func New(s Sealer) *Codec {
	return &Codec{sealer: s}
}

// Encode seals plain under password with the given label and returns the
// base64 text of the JSON envelope.
func (c *Codec) Encode(password, label string, plain []byte) ([]byte, error) {
	env, err := c.sealer.Seal(password, plain, label)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to seal %q: %w", label, err)
	}

	envJSON, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to marshal envelope: %w", err)
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(envJSON)))
	base64.StdEncoding.Encode(out, envJSON)
	return out, nil
}

// Decode reverses Encode. Every failure, whether bad base64, bad JSON or a
// wrong password, wraps ErrDecryption.
func (c *Codec) Decode(data []byte, password string) ([]byte, error) {
	envJSON := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(envJSON, data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecryption, err)
	}

	var env crypto.Envelope
	if err := json.Unmarshal(envJSON[:n], &env); err != nil {
		return nil, fmt.Errorf("%w: invalid envelope: %v", ErrDecryption, err)
	}

	plain, err := c.sealer.Open(password, &env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return plain, nil
}

// Header returns the label of an encoded envelope without decrypting it.
func Header(data []byte) (string, error) {
	envJSON, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecryption, err)
	}
	var env crypto.Envelope
	if err := json.Unmarshal(envJSON, &env); err != nil {
		return "", fmt.Errorf("%w: invalid envelope: %v", ErrDecryption, err)
	}
	return env.Header, nil
}
