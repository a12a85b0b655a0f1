package wallet

import (
	"context"
	"fmt"

	"github.com/lorena-ssi/wallet-fs/pkg/audit"
	"github.com/lorena-ssi/wallet-fs/pkg/envelope"
	"github.com/lorena-ssi/wallet-fs/pkg/storage"
)

// Envelopes are the two stored records of a wallet, as stored.
type Envelopes struct {
	Info string `json:"info"`
	Data string `json:"data"`
}

// Export maps wallet names to their stored envelopes.
type Export map[string]Envelopes

// ToJSON returns the persisted envelopes keyed by wallet name. It reads
// through the backend, so unsaved in-memory changes are not included.
func (w *Wallet) ToJSON(ctx context.Context) (Export, error) {
	info, err := w.backend.Read(ctx, storage.KeyInfo)
	if err != nil {
		return nil, err
	}
	data, err := w.backend.Read(ctx, storage.KeyData)
	if err != nil {
		return nil, err
	}

	w.journal(audit.OpWalletExport)
	return Export{
		w.name: {Info: string(info), Data: string(data)},
	}, nil
}

// Import writes this wallet's envelopes from exp to storage verbatim. The
// wallet must not exist yet. Memory is not modified; call Unlock to load
// the imported state.
func (w *Wallet) Import(ctx context.Context, exp Export) error {
	env, ok := exp[w.name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInExport, w.name)
	}
	if err := checkHeader(env.Info, envelope.LabelInfo); err != nil {
		return err
	}
	if err := checkHeader(env.Data, envelope.LabelData); err != nil {
		return err
	}

	if w.backend.Exists(ctx) {
		return fmt.Errorf("%w: %s", ErrWalletExists, w.name)
	}

	if err := w.backend.Write(ctx, storage.KeyInfo, []byte(env.Info)); err != nil {
		w.journalError(audit.OpWalletImport, "IO_ERROR", err)
		return err
	}
	if err := w.backend.Write(ctx, storage.KeyData, []byte(env.Data)); err != nil {
		w.journalError(audit.OpWalletImport, "IO_ERROR", err)
		return err
	}

	w.journal(audit.OpWalletImport)
	return nil
}

func checkHeader(encoded, want string) error {
	got, err := envelope.Header([]byte(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	if got != want {
		return fmt.Errorf("%w: expected %q envelope, got %q", ErrInvalidExport, want, got)
	}
	return nil
}
