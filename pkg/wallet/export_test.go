package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorena-ssi/wallet-fs/pkg/envelope"
	"github.com/lorena-ssi/wallet-fs/pkg/storage"
)

func TestToJSON(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t, "alice", "/r", storage.NewMemStore())
	require.NoError(t, w.Add(CollectionCredentials, Record{"name": "a"}))
	require.True(t, w.Lock(ctx, "pw"))

	exp, err := w.ToJSON(ctx)
	require.NoError(t, err)
	require.Contains(t, exp, "alice")

	info, err := w.Read(ctx, storage.KeyInfo)
	require.NoError(t, err)
	data, err := w.Read(ctx, storage.KeyData)
	require.NoError(t, err)
	assert.Equal(t, string(info), exp["alice"].Info)
	assert.Equal(t, string(data), exp["alice"].Data)

	raw, err := json.Marshal(exp)
	require.NoError(t, err)
	var shape map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &shape))
	assert.ElementsMatch(t, []string{"info", "data"}, keys(shape["alice"]))

	label, err := envelope.Header([]byte(exp["alice"].Info))
	require.NoError(t, err)
	assert.Equal(t, envelope.LabelInfo, label)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestToJSONIgnoresUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t, "alice", "/r", storage.NewMemStore())
	require.True(t, w.Lock(ctx, "pw"))

	before, err := w.ToJSON(ctx)
	require.NoError(t, err)

	require.NoError(t, w.Add(CollectionCredentials, Record{"name": "unsaved"}))
	after, err := w.ToJSON(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToJSONNeverLocked(t *testing.T) {
	w := openTestWallet(t, "alice", "/r", storage.NewMemStore())
	_, err := w.ToJSON(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	src := openTestWallet(t, "alice", "/r", storage.NewMemStore())
	require.NoError(t, src.Add(CollectionLinks, Record{"roomId": "!r"}))
	require.True(t, src.Lock(ctx, "pw"))
	exp, err := src.ToJSON(ctx)
	require.NoError(t, err)

	for kind, factory := range testStores(t) {
		t.Run(string(kind), func(t *testing.T) {
			store, root := factory(t)
			dst := openTestWallet(t, "alice", root, store)

			require.NoError(t, dst.Import(ctx, exp))
			assert.True(t, dst.Exists(ctx))
			assert.Empty(t, dst.Collection(CollectionLinks))

			require.True(t, dst.Unlock(ctx, "pw"))
			assert.Equal(t, []Record{{"roomId": "!r"}}, dst.Collection(CollectionLinks))

			assert.ErrorIs(t, dst.Import(ctx, exp), ErrWalletExists)
		})
	}
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	src := openTestWallet(t, "alice", "/r", storage.NewMemStore())
	require.True(t, src.Lock(ctx, "pw"))
	exp, err := src.ToJSON(ctx)
	require.NoError(t, err)
	good := exp["alice"]

	tests := []struct {
		name string
		exp  Export
		want error
	}{
		{"missing wallet", Export{"bob": good}, ErrNotInExport},
		{"garbage info", Export{"alice": {Info: "!!", Data: good.Data}}, ErrInvalidExport},
		{"swapped records", Export{"alice": {Info: good.Data, Data: good.Info}}, ErrInvalidExport},
		{"empty data", Export{"alice": {Info: good.Info}}, ErrInvalidExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := openTestWallet(t, "alice", "/r", storage.NewMemStore())
			assert.ErrorIs(t, dst.Import(ctx, tt.exp), tt.want)
			assert.False(t, dst.Exists(ctx))
		})
	}
}
