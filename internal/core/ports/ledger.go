package ports

import (
	"context"
	"fmt"

	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// Ledger is the RPC boundary towards the authoritative ledger. All calls are
// fallible and may time out; implementations map transport failures to
// domain.ErrLedgerUnavailable and missing records to domain.ErrRecordNotFound.
// The ledger can lie or be stale independently of the program's state, so
// callers must not assume a successful read is final.
type Ledger interface {
	// GetAccount returns the raw data of the record at the given address.
	GetAccount(ctx context.Context, address derivation.Address) ([]byte, error)
	// FindProgramAccounts returns all escrow-program records whose data
	// starts with the given account discriminator, keyed by address. This is
	// the expensive full-scan path and is only used when no index entry can
	// locate a record.
	FindProgramAccounts(
		ctx context.Context, discriminator []byte,
	) (map[derivation.Address][]byte, error)
	// GetBalance returns the fee-currency balance of the address.
	GetBalance(ctx context.Context, address derivation.Address) (uint64, error)
	// GetTokenBalance returns the primary-token balance of the address.
	GetTokenBalance(ctx context.Context, address derivation.Address) (uint64, error)
	// SubmitTransaction submits a signed transaction and waits for
	// confirmation, returning its signature id.
	SubmitTransaction(ctx context.Context, tx *madprogram.Transaction) (string, error)
}

// FeeShortfallError is the typed classification of an "insufficient
// fee-currency" rejection. Transports should return it whenever they can
// recognize the failure structurally; free-text scanning is only a fallback.
type FeeShortfallError struct {
	Have uint64
	Need uint64
}

func (e *FeeShortfallError) Error() string {
	return fmt.Sprintf("insufficient fee funds: have %d, need %d", e.Have, e.Need)
}

// Deficit returns how much fee currency is missing.
func (e *FeeShortfallError) Deficit() uint64 {
	if e.Need <= e.Have {
		return 0
	}
	return e.Need - e.Have
}
