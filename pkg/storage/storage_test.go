package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendFactories returns one Store per available variant. Redis only
// runs when LORENA_TEST_REDIS_ADDR is set.
func backendFactories(t *testing.T) map[Kind]func(t *testing.T) (Store, string) {
	t.Helper()
	factories := map[Kind]func(t *testing.T) (Store, string){
		KindFS: func(t *testing.T) (Store, string) {
			return NewFSStore(), Location(t.TempDir(), "alice")
		},
		KindMem: func(t *testing.T) (Store, string) {
			return NewMemStore(), Location("/home/test", "alice")
		},
		KindSQLite: func(t *testing.T) (Store, string) {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s, Location("/home/test", "alice")
		},
	}
	if addr := os.Getenv("LORENA_TEST_REDIS_ADDR"); addr != "" {
		factories[KindRedis] = func(t *testing.T) (Store, string) {
			client := redis.NewClient(&redis.Options{Addr: addr})
			t.Cleanup(func() { _ = client.Close() })
			loc := Location("/lorena-test/"+t.Name(), "alice")
			require.NoError(t, client.Del(context.Background(), loc).Err())
			return NewRedisStore(client), loc
		}
	}
	return factories
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for kind, factory := range backendFactories(t) {
		t.Run(string(kind), func(t *testing.T) {
			store, loc := factory(t)
			assert.Equal(t, kind, store.Kind())
			b := store.Backend(loc)
			assert.Equal(t, loc, b.Location())

			assert.False(t, b.Exists(ctx), "fresh location should not exist")

			_, err := b.Read(ctx, KeyInfo)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Write(ctx, KeyInfo, []byte("info-bytes")))
			assert.True(t, b.Exists(ctx))

			got, err := b.Read(ctx, KeyInfo)
			require.NoError(t, err)
			assert.Equal(t, []byte("info-bytes"), got)

			_, err = b.Read(ctx, KeyData)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Write(ctx, KeyInfo, []byte("replaced")))
			got, err = b.Read(ctx, KeyInfo)
			require.NoError(t, err)
			assert.Equal(t, []byte("replaced"), got)

			require.NoError(t, b.Delete(ctx))
			assert.False(t, b.Exists(ctx))
			_, err = b.Read(ctx, KeyInfo)
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting again is a no-op
			require.NoError(t, b.Delete(ctx))
		})
	}
}

func TestBackendsAreScoped(t *testing.T) {
	ctx := context.Background()
	for kind, factory := range backendFactories(t) {
		t.Run(string(kind), func(t *testing.T) {
			store, loc := factory(t)
			a := store.Backend(loc)
			b := store.Backend(loc + "-other")
			t.Cleanup(func() { _ = b.Delete(ctx) })

			require.NoError(t, a.Write(ctx, KeyData, []byte("a")))
			assert.False(t, b.Exists(ctx))

			// a second handle on the same location sees the same data
			same := store.Backend(loc)
			got, err := same.Read(ctx, KeyData)
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), got)
		})
	}
}

func TestFSExistsRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wallet")
	require.NoError(t, os.WriteFile(file, []byte("x"), FileMode))

	b := NewFSStore().Backend(file)
	assert.False(t, b.Exists(context.Background()))
}

func TestFSWriteCreatesDirectories(t *testing.T) {
	ctx := context.Background()
	loc := Location(t.TempDir(), "bob")
	b := NewFSStore().Backend(loc)

	require.NoError(t, b.Write(ctx, KeyInfo, []byte("x")))

	info, err := os.Stat(loc)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(DirMode), info.Mode().Perm())

	finfo, err := os.Stat(filepath.Join(loc, KeyInfo))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileMode), finfo.Mode().Perm())
}

func TestFSWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), FileMode))

	// parent is a regular file so the wallet directory cannot be created
	b := NewFSStore().Backend(filepath.Join(blocker, "wallet"))
	assert.Error(t, b.Write(context.Background(), KeyInfo, []byte("x")))
}

func TestMemStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	b := s.Backend("loc")

	data := []byte("abc")
	require.NoError(t, b.Write(ctx, KeyInfo, data))
	data[0] = 'X'

	got, err := b.Read(ctx, KeyInfo)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[0] = 'Y'
	again, err := b.Read(ctx, KeyInfo)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)

	assert.Equal(t, []string{"loc"}, s.Locations())
}

func TestLocation(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/u", ".lorena", "wallets", "alice"), Location("/home/u", "alice"))
}

func TestValidateName(t *testing.T) {
	valid := []string{"alice", "wallet-1", "my.wallet", "ünïcode"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "a\x00b", string(make([]byte, MaxNameLength+1))}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, "%q", name)
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{KeyInfo, KeyData, "notes"} {
		assert.NoError(t, ValidateKey(key), key)
	}

	invalid := []string{"", ".", "..", "../bob/info", "sub/info", `..\info`, "a\x00b"}
	for _, key := range invalid {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, "%q", key)
	}
}

func TestBackendsRejectEscapingKeys(t *testing.T) {
	ctx := context.Background()
	for kind, factory := range backendFactories(t) {
		t.Run(string(kind), func(t *testing.T) {
			store, loc := factory(t)
			alice := store.Backend(loc)
			bob := store.Backend(filepath.Join(filepath.Dir(loc), "bob"))
			require.NoError(t, bob.Write(ctx, KeyInfo, []byte("bob-info")))

			_, err := alice.Read(ctx, "../bob/info")
			assert.ErrorIs(t, err, ErrInvalidKey)

			assert.ErrorIs(t, alice.Write(ctx, "../bob/info", []byte("overwritten")), ErrInvalidKey)
			got, err := bob.Read(ctx, KeyInfo)
			require.NoError(t, err)
			assert.Equal(t, []byte("bob-info"), got)
			assert.False(t, alice.Exists(ctx))
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"":        KindFS,
		"fs":      KindFS,
		"MEM":     KindMem,
		" sqlite": KindSQLite,
		"redis":   KindRedis,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("s3")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, KindFS, s.Kind())

	s, err = Open(ctx, Config{Kind: KindMem})
	require.NoError(t, err)
	assert.Equal(t, KindMem, s.Kind())

	s, err = Open(ctx, Config{Kind: KindSQLite, SQLitePath: filepath.Join(t.TempDir(), "wallets.db")})
	require.NoError(t, err)
	assert.Equal(t, KindSQLite, s.Kind())
	require.NoError(t, s.(*SQLiteStore).Close())

	_, err = Open(ctx, Config{Kind: KindSQLite})
	assert.ErrorIs(t, err, ErrMissingAddress)

	_, err = Open(ctx, Config{Kind: KindRedis})
	assert.ErrorIs(t, err, ErrMissingAddress)

	_, err = Open(ctx, Config{Kind: "s3"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
