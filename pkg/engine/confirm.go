package engine

import (
	"context"
	"time"

	"github.com/mr-tron/base58"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
)

// Status is the terminal state of a submitted transaction as observed by the
// confirmation loop.
type Status uint8

const (
	// StatusUnknown: the poll ceiling elapsed with no observation. The
	// transaction may still land; reconcile to find out.
	StatusUnknown Status = iota

	// StatusConfirmed: the cluster confirmed the transaction at the
	// configured commitment and it executed without error.
	StatusConfirmed

	// StatusFinalized: the transaction is rooted.
	StatusFinalized

	// StatusFailed: the transaction executed and returned an error.
	StatusFailed

	// StatusExpired: the transaction's anchor aged out before any
	// observation. It can never execute.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	case StatusExpired:
		return "expired"
	}
	return "unknown"
}

// PendingSubmission is a submitted transaction awaiting an outcome.
type PendingSubmission struct {
	Signature   solana.Signature
	Anchor      solana.Anchor
	SubmittedAt time.Time
}

// Confirmation is the observed outcome of a pending submission.
type Confirmation struct {
	Status Status
	Slot   uint64

	// Err is set when Status is StatusFailed.
	Err error
}

// WaitForConfirmation polls the pending submission until it reaches the
// configured commitment, fails, expires, or the poll ceiling elapses.
//
// Expiry is decided by block height: once the network has moved past the
// anchor's last valid height and the signature has still never been
// observed, the transaction can no longer be included. The loop never
// resubmits; retries are an explicit caller decision.
//
// A cancelled context surfaces as CategoryCancelled: the outcome is
// undetermined, not failed.
func (e *Engine) WaitForConfirmation(ctx context.Context, pending PendingSubmission) (*Confirmation, error) {
	log := e.log.WithFields(map[string]interface{}{
		"method":    "WaitForConfirmation",
		"signature": base58.Encode(pending.Signature[:]),
	})

	deadline := time.NewTimer(e.cfg.PollCeiling)
	defer deadline.Stop()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := e.client.GetSignatureStatus(pending.Signature)
		switch err {
		case nil:
			if status.ErrorResult != nil {
				log.WithError(status.ErrorResult).Debug("transaction failed")
				return &Confirmation{
					Status: StatusFailed,
					Slot:   status.Slot,
					Err:    status.ErrorResult,
				}, nil
			}

			if status.Finalized() {
				return &Confirmation{Status: StatusFinalized, Slot: status.Slot}, nil
			}
			if e.cfg.Commitment == "confirmed" && status.Confirmed() {
				return &Confirmation{Status: StatusConfirmed, Slot: status.Slot}, nil
			}
		case solana.ErrSignatureNotFound:
			expired, heightErr := e.anchorExpired(pending.Anchor)
			if heightErr != nil {
				log.WithError(heightErr).Warn("failed to check block height")
			} else if expired {
				return &Confirmation{Status: StatusExpired}, nil
			}
		default:
			log.WithError(err).Warn("failed to poll signature status")
		}

		select {
		case <-ctx.Done():
			return nil, actionError(CategoryCancelled, ctx.Err())
		case <-deadline.C:
			return &Confirmation{Status: StatusUnknown}, nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) anchorExpired(anchor solana.Anchor) (bool, error) {
	height, err := e.client.GetBlockHeight(e.cfg.commitment())
	if err != nil {
		return false, err
	}
	return height > anchor.LastValidBlockHeight, nil
}
