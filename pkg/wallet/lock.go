package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lorena-ssi/wallet-fs/pkg/audit"
	"github.com/lorena-ssi/wallet-fs/pkg/envelope"
	"github.com/lorena-ssi/wallet-fs/pkg/storage"
)

// Unlock reads both persisted records and decrypts them with password.
// Only when every step succeeds is the in-memory identity and data replaced
// with the stored values. A missing wallet, wrong password or corrupt
// record returns false and leaves memory untouched.
func (w *Wallet) Unlock(ctx context.Context, password string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, data, err := w.load(ctx, password)
	if err != nil {
		w.log.WithError(err).Debug("unlock failed")
		w.journalError(audit.OpWalletUnlockFailed, errorCode(err), err)
		return false
	}

	w.info = info
	w.data = data
	w.journal(audit.OpWalletUnlock)
	return true
}

// Lock seals the in-memory identity and data under password and writes
// them to storage, then clears the changed flag.
//
// When the wallet already exists, the stored records must first decrypt
// under password; otherwise Lock returns false and writes nothing, so an
// existing wallet is never overwritten under a different password. This
// verification does not modify memory: what is written is always the
// in-memory state at the time of the call, including edits made since the
// last Unlock.
//
// A failed write returns false. The info record may then have been written
// without the data record; this is not rolled back.
func (w *Wallet) Lock(ctx context.Context, password string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.backend.Exists(ctx) {
		if _, _, err := w.load(ctx, password); err != nil {
			w.log.WithError(err).Info("lock rejected: stored wallet does not open with this password")
			if w.audit != nil {
				if err := w.audit.LogDenied(audit.OpWalletLockRejected, w.name, errorCode(err)); err != nil {
					w.log.WithError(err).Warn("audit journal write failed")
				}
			}
			return false
		}
	}

	if err := w.store(ctx, password); err != nil {
		w.log.WithError(err).Warn("lock failed")
		w.journalError(audit.OpWalletLock, errorCode(err), err)
		return false
	}

	w.changed = false
	w.journal(audit.OpWalletLock)
	return true
}

// load reads and decodes both records without touching memory.
func (w *Wallet) load(ctx context.Context, password string) (Identity, Data, error) {
	var info Identity
	if err := w.loadRecord(ctx, storage.KeyInfo, password, &info); err != nil {
		return Identity{}, nil, err
	}
	if info.KeyPair == nil {
		info.KeyPair = map[string]any{}
	}
	if info.Person == nil {
		info.Person = map[string]any{}
	}

	var data Data
	if err := w.loadRecord(ctx, storage.KeyData, password, &data); err != nil {
		return Identity{}, nil, err
	}
	if data == nil {
		data = Data{}
	}
	return info, data, nil
}

func (w *Wallet) loadRecord(ctx context.Context, key, password string, v any) error {
	raw, err := w.backend.Read(ctx, key)
	if err != nil {
		return err
	}
	plain, err := w.codec.Decode(raw, password)
	if err != nil {
		return fmt.Errorf("wallet: failed to decode %s: %w", key, err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("wallet: malformed %s record: %w", key, err)
	}
	return nil
}

// store encodes and writes info, then data.
func (w *Wallet) store(ctx context.Context, password string) error {
	if err := w.storeRecord(ctx, storage.KeyInfo, envelope.LabelInfo, password, w.info); err != nil {
		return err
	}
	return w.storeRecord(ctx, storage.KeyData, envelope.LabelData, password, w.data)
}

func (w *Wallet) storeRecord(ctx context.Context, key, label, password string, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wallet: failed to marshal %s: %w", key, err)
	}
	encoded, err := w.codec.Encode(password, label, plain)
	if err != nil {
		return err
	}
	return w.backend.Write(ctx, key, encoded)
}

// errorCode classifies err for the audit journal.
func errorCode(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, envelope.ErrDecryption):
		return "AUTH_FAILED"
	default:
		return "IO_ERROR"
	}
}
