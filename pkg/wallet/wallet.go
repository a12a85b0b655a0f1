// Package wallet provides a password-encrypted local credential store.
//
// A Wallet holds two records: the identity ("info") and a set of named
// collections ("data"). Both live in memory while the wallet is in use and
// are persisted, each sealed under the wallet password, by Lock. Unlock
// reads them back. Collections are edited in memory with Get, Add, Update
// and Remove.
//
//	w, err := wallet.New("alice", wallet.Options{Root: home})
//	if !w.Unlock(ctx, password) {
//		// new wallet or wrong password
//	}
//	_ = w.Add(wallet.CollectionCredentials, wallet.Record{"name": "github"})
//	if !w.Lock(ctx, password) {
//		// wrong password for the existing wallet, or the write failed
//	}
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lorena-ssi/wallet-fs/pkg/audit"
	"github.com/lorena-ssi/wallet-fs/pkg/crypto"
	"github.com/lorena-ssi/wallet-fs/pkg/envelope"
	"github.com/lorena-ssi/wallet-fs/pkg/storage"
)

// Pre-declared collections
const (
	CollectionCredentials = "credentials"
	CollectionLinks       = "links"
	CollectionTasks       = "tasks"
)

// Errors
var (
	ErrInvalidArgument = errors.New("wallet: invalid argument")
	ErrWalletExists    = errors.New("wallet: wallet already exists")
	ErrNotInExport     = errors.New("wallet: wallet not present in export")
	ErrInvalidExport   = errors.New("wallet: invalid export")
)

// Identity is the wallet's identity and authentication metadata.
type Identity struct {
	// MatrixUser and MatrixPass are the service account credentials.
	MatrixUser string `json:"matrixUser"`
	MatrixPass string `json:"matrixPass"`

	// KeyPair is opaque key material owned by the crypto layer.
	KeyPair map[string]any `json:"keyPair"`

	// Person holds free-form profile attributes.
	Person map[string]any `json:"person"`
}

func newIdentity() Identity {
	return Identity{
		KeyPair: map[string]any{},
		Person:  map[string]any{},
	}
}

// clone copies the maps of id. Nil maps become empty ones so callers can
// assign into the result.
func (id Identity) clone() Identity {
	id.KeyPair = cloneMap(id.KeyPair)
	id.Person = cloneMap(id.Person)
	return id
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

// Data maps a collection name to its records in insertion order.
type Data map[string][]Record

func newData() Data {
	return Data{
		CollectionCredentials: []Record{},
		CollectionLinks:       []Record{},
		CollectionTasks:       []Record{},
	}
}

// Options configures a Wallet.
type Options struct {
	// Storage selects the backend when Store is nil. Defaults to fs.
	Storage storage.Kind

	// Root is the directory under which .lorena/wallets/<name> lives. For
	// non-filesystem backends it only namespaces the wallet.
	Root string

	// Silent suppresses diagnostics from the wallet and the crypto layer.
	Silent bool

	// Store is a shared store. When nil a store is created from Storage;
	// only fs and mem can be created this way.
	Store storage.Store

	// Sealer overrides the encryption capability. When nil a crypto.Cipher
	// is built with KDF.
	Sealer envelope.Sealer

	// KDF holds the Argon2id parameters for new envelopes. The zero value
	// selects crypto.DefaultParams.
	KDF crypto.Params

	// Logger receives diagnostics. When nil a stderr logger is used.
	Logger *logrus.Logger

	// Audit, when set, journals lifecycle events.
	Audit *audit.Logger
}

// Wallet is one named wallet bound to a storage backend.
//
// A Wallet is safe for use by multiple goroutines, but nothing coordinates
// two Wallets (or two processes) writing the same location.
type Wallet struct {
	mu      sync.Mutex
	name    string
	backend storage.Backend
	codec   *envelope.Codec
	info    Identity
	data    Data
	changed bool
	log     *logrus.Entry
	audit   *audit.Logger
}

// New creates a wallet named name holding an empty identity and the empty
// pre-declared collections. Nothing is read or written.
func New(name string, opts Options) (*Wallet, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		switch opts.Storage {
		case "", storage.KindFS:
			store = storage.NewFSStore()
		case storage.KindMem:
			store = storage.NewMemStore()
		default:
			return nil, fmt.Errorf("%w: storage %q requires an opened Store", ErrInvalidArgument, opts.Storage)
		}
	}

	sealer := opts.Sealer
	if sealer == nil {
		params := opts.KDF
		if params == (crypto.Params{}) {
			params = crypto.DefaultParams()
		}
		if err := params.Validate(); err != nil {
			return nil, err
		}
		sealer = crypto.NewCipher(params, opts.Silent)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
	}
	if opts.Silent {
		logger = silence(logger)
	}

	location := storage.Location(opts.Root, name)
	return &Wallet{
		name:    name,
		backend: store.Backend(location),
		codec:   envelope.New(sealer),
		info:    newIdentity(),
		data:    newData(),
		log: logger.WithFields(logrus.Fields{
			"wallet":  name,
			"storage": string(store.Kind()),
		}),
		audit: opts.Audit,
	}, nil
}

// silence returns a logger sharing formatting with l that writes nowhere.
func silence(l *logrus.Logger) *logrus.Logger {
	quiet := logrus.New()
	quiet.SetFormatter(l.Formatter)
	quiet.SetLevel(l.GetLevel())
	quiet.SetOutput(io.Discard)
	return quiet
}

// Name returns the wallet name.
func (w *Wallet) Name() string {
	return w.name
}

// Location returns the storage location of the wallet.
func (w *Wallet) Location() string {
	return w.backend.Location()
}

// Changed reports whether the in-memory state was modified since the last
// successful Lock.
func (w *Wallet) Changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}

// Identity returns a copy of the in-memory identity.
func (w *Wallet) Identity() Identity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info.clone()
}

// SetIdentity replaces the in-memory identity and marks the wallet changed.
func (w *Wallet) SetIdentity(id Identity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = true
	w.info = id.clone()
}

// Collections returns the names of all collections, sorted.
func (w *Wallet) Collections() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.data))
	for name := range w.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection returns a copy of the records of collection, or nil when the
// collection does not exist.
func (w *Wallet) Collection(collection string) []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	records, ok := w.data[collection]
	if !ok {
		return nil
	}
	return cloneRecords(records)
}

// Exists reports whether the wallet has persisted state.
func (w *Wallet) Exists(ctx context.Context) bool {
	return w.backend.Exists(ctx)
}

// Read returns the raw stored bytes under key.
func (w *Wallet) Read(ctx context.Context, key string) ([]byte, error) {
	return w.backend.Read(ctx, key)
}

// Write stores raw bytes under key. It returns false when nothing was
// persisted; the cause is logged.
func (w *Wallet) Write(ctx context.Context, key string, data []byte) bool {
	if err := w.backend.Write(ctx, key, data); err != nil {
		w.log.WithField("key", key).WithError(err).Warn("write failed")
		return false
	}
	return true
}

// Delete erases all persisted state of the wallet. The in-memory state is
// left as is. Deleting a wallet that was never persisted succeeds.
func (w *Wallet) Delete(ctx context.Context) bool {
	if err := w.backend.Delete(ctx); err != nil {
		w.log.WithError(err).Warn("delete failed")
		w.journalError(audit.OpWalletDelete, "IO_ERROR", err)
		return false
	}
	w.journal(audit.OpWalletDelete)
	return true
}

// journal records a successful operation. Journal failures never change
// the outcome of the operation.
func (w *Wallet) journal(op string) {
	if w.audit == nil {
		return
	}
	if err := w.audit.LogSuccess(op, w.name); err != nil {
		w.log.WithError(err).Warn("audit journal write failed")
	}
}

func (w *Wallet) journalError(op, code string, cause error) {
	if w.audit == nil {
		return
	}
	if err := w.audit.LogError(op, w.name, code, cause.Error()); err != nil {
		w.log.WithError(err).Warn("audit journal write failed")
	}
}
