package application

import "errors"

var (
	// ErrCannotLoadContracts is returned on the very first load when the
	// ledger is unreachable and the local cache is still cold.
	ErrCannotLoadContracts = errors.New("cannot load contracts")
	// ErrInsufficientPrimaryBalance is returned when the primary-token
	// balance cannot cover the input side of a replenish swap. Unlike a
	// fee-currency shortfall there is nothing further to swap for, so this
	// is never auto-resolved.
	ErrInsufficientPrimaryBalance = errors.New("insufficient primary token balance for swap")
	// ErrNoMatchingContract is returned by FindByCode when no pending
	// contract commits to the given code.
	ErrNoMatchingContract = errors.New("no pending contract matches the given code")
)
