package ports

import (
	"context"

	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// Signer is the capability object for transaction signing. It is passed
// explicitly into every operation that needs it; implementations must fail
// fast with domain.ErrSignerLocked while locked rather than hang.
type Signer interface {
	PublicIdentity() derivation.Address
	SignTransaction(ctx context.Context, tx *madprogram.Transaction) error
	SignAllTransactions(ctx context.Context, txs []*madprogram.Transaction) error
}
