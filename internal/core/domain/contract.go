package domain

import (
	"github.com/madnet-labs/madd/pkg/derivation"
)

// ContractStatus represents the different statuses that a MAD contract can
// assume. Completed, Cancelled and Burned are absorbing.
type ContractStatus int

const (
	// StatusPendingSeller is the status of a freshly created contract
	// waiting for a seller to accept.
	StatusPendingSeller ContractStatus = iota
	// StatusLocked means both parties have deposited collateral.
	StatusLocked
	// StatusBuyerConfirmed means only the buyer has confirmed so far.
	StatusBuyerConfirmed
	// StatusSellerConfirmed means only the seller has confirmed so far.
	StatusSellerConfirmed
	// StatusCompleted means both parties confirmed and deposits were
	// returned. Terminal.
	StatusCompleted
	// StatusCancelled means the buyer backed out before acceptance. Terminal.
	StatusCancelled
	// StatusBurned means one party destroyed both deposits. Terminal.
	StatusBurned
)

func (s ContractStatus) String() string {
	switch s {
	case StatusPendingSeller:
		return "pending_seller"
	case StatusLocked:
		return "locked"
	case StatusBuyerConfirmed:
		return "buyer_confirmed"
	case StatusSellerConfirmed:
		return "seller_confirmed"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusBurned:
		return "burned"
	default:
		return "unknown"
	}
}

// IsTerminal returns whether the status is absorbing.
func (s ContractStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusBurned
}

// Role identifies which side of a contract a party is on.
type Role int

const (
	// RoleNone ...
	RoleNone Role = iota
	// RoleBuyer ...
	RoleBuyer
	// RoleSeller ...
	RoleSeller
)

// Contract is the client-side projection of an on-ledger MAD contract
// record.
type Contract struct {
	Address         derivation.Address
	Buyer           derivation.Address
	Seller          derivation.Address
	Principal       uint64
	BuyerDeposit    uint64
	SellerDeposit   uint64
	Commitment      [32]byte
	Nonce           uint64
	BuyerConfirmed  bool
	SellerConfirmed bool
	Closed          bool
	Status          ContractStatus
}

// NewContract returns a contract in PendingSeller status with the buyer
// deposit of twice the principal, as the creation instruction enforces.
func NewContract(
	buyer derivation.Address, principal, nonce uint64, secretCode string,
) (*Contract, error) {
	if principal == 0 {
		return nil, ErrAmountTooLow
	}

	address := derivation.ForContract(buyer, nonce)
	return &Contract{
		Address:      address,
		Buyer:        buyer,
		Principal:    principal,
		BuyerDeposit: 2 * principal,
		Commitment:   derivation.Commitment(address, secretCode),
		Nonce:        nonce,
		Status:       StatusPendingSeller,
	}, nil
}

// RoleOf returns the role the given identity holds in the contract.
func (c *Contract) RoleOf(identity derivation.Address) Role {
	switch identity {
	case c.Buyer:
		return RoleBuyer
	case c.Seller:
		if !c.Seller.IsZero() {
			return RoleSeller
		}
	}
	return RoleNone
}

// Accept brings a PendingSeller contract to Locked, recording the seller and
// its deposit of one principal. The code is checked against the stored
// commitment; the ledger program re-verifies it, this check only avoids
// submitting a doomed transaction.
func (c *Contract) Accept(seller derivation.Address, code string) error {
	if c.Status != StatusPendingSeller {
		return ErrInvalidState
	}
	if seller == c.Buyer {
		return ErrUnauthorized
	}
	if !derivation.VerifyCommitment(c.Address, code, c.Commitment) {
		return ErrInvalidCommitment
	}

	c.Seller = seller
	c.SellerDeposit = c.Principal
	c.Status = StatusLocked
	return nil
}

// Cancel brings a PendingSeller contract to the terminal Cancelled status,
// refunding the buyer deposit. Buyer only.
func (c *Contract) Cancel(by derivation.Address) error {
	if c.RoleOf(by) != RoleBuyer {
		return ErrUnauthorized
	}
	if c.Status != StatusPendingSeller {
		return ErrInvalidState
	}

	c.BuyerDeposit = 0
	c.Closed = true
	c.Status = StatusCancelled
	return nil
}

// Confirm records the calling party's confirmation. When both flags are set
// the contract completes and both deposits return to their owners.
func (c *Contract) Confirm(by derivation.Address) error {
	role := c.RoleOf(by)
	if role == RoleNone {
		return ErrUnauthorized
	}

	switch c.Status {
	case StatusLocked:
	case StatusBuyerConfirmed:
		if role == RoleBuyer {
			return ErrInvalidState
		}
	case StatusSellerConfirmed:
		if role == RoleSeller {
			return ErrInvalidState
		}
	default:
		return ErrInvalidState
	}

	if role == RoleBuyer {
		c.BuyerConfirmed = true
	} else {
		c.SellerConfirmed = true
	}

	if c.BuyerConfirmed && c.SellerConfirmed {
		c.BuyerDeposit = 0
		c.SellerDeposit = 0
		c.Closed = true
		c.Status = StatusCompleted
		return nil
	}
	if role == RoleBuyer {
		c.Status = StatusBuyerConfirmed
	} else {
		c.Status = StatusSellerConfirmed
	}
	return nil
}

// Burn destroys both deposits. Either party may burn once collateral is
// locked; this unilateral option is the trust mechanism of a MAD contract.
func (c *Contract) Burn(by derivation.Address) error {
	if c.RoleOf(by) == RoleNone {
		return ErrUnauthorized
	}
	switch c.Status {
	case StatusLocked, StatusBuyerConfirmed, StatusSellerConfirmed:
	default:
		return ErrInvalidState
	}

	c.BuyerDeposit = 0
	c.SellerDeposit = 0
	c.Closed = true
	c.Status = StatusBurned
	return nil
}

// InferTerminalStatus returns the terminal status to assume for a contract
// that disappeared from its owners' indexes while the record itself is gone
// from the ledger. Both confirmation flags set means it completed; anything
// else keeps the last known status.
func (c *Contract) InferTerminalStatus() ContractStatus {
	if c.BuyerConfirmed && c.SellerConfirmed {
		return StatusCompleted
	}
	return c.Status
}
