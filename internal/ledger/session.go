package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

// Session is the set of ledger operations available while a Gateway
// holds a connection. It is only valid inside the Do callback that
// received it.
type Session struct {
	conn     Conn
	observer Observer
	log      *slog.Logger
	signer   *SigningIdentity
}

// InitCredential derives the signing identity from mnemonic. It must
// succeed before any write on this Session.
func (s *Session) InitCredential(mnemonic string) (SigningIdentity, error) {
	id, err := s.conn.UseCredential(mnemonic)
	if err != nil {
		return SigningIdentity{}, wrap(ErrCredential, "init credential", err)
	}
	s.signer = &id
	return id, nil
}

// FindProjectByInitiator scans all projects newest first and returns the
// first one created by initiator, or nil if there is none.
func (s *Session) FindProjectByInitiator(ctx context.Context, initiator string) (*Project, error) {
	start := time.Now()
	projects, err := s.conn.Projects(ctx)
	s.observer.ObserveCall("projects", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for i := len(projects) - 1; i >= 0; i-- {
		if projects[i].Initiator == initiator {
			p := projects[i]
			return &p, nil
		}
	}
	return nil, nil
}

// LatestBlock returns the height of the chain head.
func (s *Session) LatestBlock(ctx context.Context) (uint64, error) {
	start := time.Now()
	n, err := s.conn.LatestBlock(ctx)
	s.observer.ObserveCall("header", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}
	return n, nil
}

// Transfer submits a balance transfer of amount base units to to.
func (s *Session) Transfer(ctx context.Context, to string, amount *big.Int) (TxHash, error) {
	return s.submit("transfer", func() (TxHash, error) {
		return s.conn.Transfer(ctx, to, amount)
	})
}

// ScheduleRound submits a privileged call opening a funding window for
// projectKeys between startBlock and endBlock.
func (s *Session) ScheduleRound(ctx context.Context, projectKeys []uint32, startBlock, endBlock uint64) (TxHash, error) {
	return s.submit("schedule_round", func() (TxHash, error) {
		return s.conn.ScheduleRound(ctx, projectKeys, startBlock, endBlock)
	})
}

// ApproveFunding submits a privileged approval. A nil milestone approves
// project funding; otherwise it approves that milestone.
func (s *Session) ApproveFunding(ctx context.Context, projectKey uint32, milestone *uint32) (TxHash, error) {
	return s.submit("approve", func() (TxHash, error) {
		return s.conn.ApproveFunding(ctx, projectKey, milestone)
	})
}

func (s *Session) submit(op string, call func() (TxHash, error)) (TxHash, error) {
	if s.signer == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNoCredential)
	}
	start := time.Now()
	hash, err := call()
	s.observer.ObserveCall(op, err, time.Since(start))
	switch {
	case errors.Is(err, ErrUnconfirmed):
		return "", fmt.Errorf("%s: %w", op, err)
	case err != nil:
		return "", wrap(ErrSubmission, op, err)
	}
	s.log.Info("extrinsic submitted", "call", op, "tx_hash", string(hash), "signer", s.signer.Address)
	return hash, nil
}
