package model

import "errors"

var (
	// ErrDuplicateTransaction indicates that a transaction with the same
	// (event fingerprint, reason code) already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	// ErrTransactionNotFound indicates that the requested transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyReversed indicates that the transaction already has a reversal.
	ErrAlreadyReversed = errors.New("transaction already reversed")
	// ErrCannotReverseReversal indicates an attempt to reverse a REVERSAL row.
	ErrCannotReverseReversal = errors.New("cannot reverse a reversal")
	// ErrLedgerIntegrityMismatch indicates that cached totals disagree with the ledger.
	ErrLedgerIntegrityMismatch = errors.New("ledger integrity mismatch")
	// ErrInvalidUserID indicates that the user id is empty.
	ErrInvalidUserID = errors.New("invalid user ID")
	// ErrInvalidTransaction indicates that a transaction is missing required fields.
	ErrInvalidTransaction = errors.New("invalid transaction")
)
