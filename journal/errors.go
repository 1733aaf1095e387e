package journal

import "errors"

var (
	// ErrChainBroken indicates an entry's Prev does not equal the preceding entry's Hash,
	// or sequence numbers are not contiguous.
	ErrChainBroken = errors.New("journal: hash chain broken")

	// ErrHashMismatch indicates an entry's stored Hash does not match its contents.
	ErrHashMismatch = errors.New("journal: entry hash mismatch")

	// ErrInvalidRecord indicates a record is missing its op or owner.
	ErrInvalidRecord = errors.New("journal: invalid record")

	// ErrForeignTx indicates AppendTx was given a transaction on another database.
	ErrForeignTx = errors.New("journal: transaction belongs to another database")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("journal: required parameter is nil")
)
