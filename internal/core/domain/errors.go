package domain

import "errors"

var (
	// ErrUnauthorized is thrown when a party attempts a transition reserved
	// for the other role.
	ErrUnauthorized = errors.New("party is not allowed to perform this operation")
	// ErrInvalidState is thrown when a transition is not legal from the
	// contract's current status.
	ErrInvalidState = errors.New("operation not allowed in current contract status")
	// ErrInvalidCommitment is thrown when a secret code does not match the
	// contract's stored digest.
	ErrInvalidCommitment = errors.New("secret code does not match contract commitment")
	// ErrRecordNotFound is thrown when an address has no record on the
	// ledger, or the record has been closed and reclaimed.
	ErrRecordNotFound = errors.New("record not found")
	// ErrLedgerUnavailable is thrown on transport failures or timeouts.
	ErrLedgerUnavailable = errors.New("ledger is unavailable, try again later")
	// ErrSignerLocked is thrown when the signer has not been unlocked.
	ErrSignerLocked = errors.New("signer must be unlocked to perform this operation")
	// ErrAmountTooLow ...
	ErrAmountTooLow = errors.New("amount must be greater than zero")
	// ErrNonceExhausted ...
	ErrNonceExhausted = errors.New("buyer nonce space is exhausted")
)
