package crypto_test

import (
	"crypto/rand"
	"testing"

	"github.com/lorena-ssi/wallet-fs/pkg/crypto"
)

// BenchmarkDeriveKey measures Argon2id key derivation with the default
// (OWASP recommended) parameters.
func BenchmarkDeriveKey(b *testing.B) {
	password := []byte("testpassword123!")
	salt := make([]byte, crypto.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.DeriveKey(password, salt, crypto.DefaultParams())
	}
}

// BenchmarkSeal measures sealing a 1KB record, key derivation included.
func BenchmarkSeal(b *testing.B) {
	c := crypto.NewCipher(crypto.Params{Time: 1, Memory: 64, Threads: 1}, true)
	data := make([]byte, 1024)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Seal("pw", data, "Wallet data"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEncrypt measures raw AES-256-GCM encryption with a 1KB payload.
func BenchmarkEncrypt(b *testing.B) {
	key := make([]byte, crypto.KeyLength)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}
	data := make([]byte, 1024)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := crypto.Encrypt(key, data, nil); err != nil {
			b.Fatal(err)
		}
	}
}
