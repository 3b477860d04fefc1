package sandbox

import "errors"

var (
	ErrLedgerInvariantViolation = errors.New("ledger invariant violation")
	ErrInvalidFill              = errors.New("invalid fill")
	ErrUnknownOrder             = errors.New("unknown order")
	ErrUnknownAsset             = errors.New("unknown asset")
	ErrInvalidAmount            = errors.New("invalid amount")
)
