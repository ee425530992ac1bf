package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the node was unreachable or rejected the handshake.
	ErrConnection = errors.New("ledger: connection failed")
	// ErrSubmission means the node refused a write before pool inclusion.
	ErrSubmission = errors.New("ledger: submission rejected")
	// ErrUnconfirmed means a write was sent but the node's answer was lost.
	// The transaction may be in the pool.
	ErrUnconfirmed = errors.New("ledger: submission unconfirmed")
	// ErrCredential means the signing credential could not be derived.
	ErrCredential = errors.New("ledger: invalid credential")
	// ErrNoCredential means a write was attempted before InitCredential.
	ErrNoCredential = fmt.Errorf("%w: not initialized", ErrCredential)
)
