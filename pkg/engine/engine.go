// Package engine drives the full lifecycle of time lock actions: assembling
// and signing transactions, submitting them, confirming their outcome, and
// reconciling local views against on-chain state.
package engine

import (
	"context"
	"crypto/ed25519"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
	"github.com/timelock-wallet/timelock-client/pkg/timelockwallet"
)

// Signer authorizes transactions on behalf of the party. Implementations may
// hold the key locally or defer to an external wallet; either way a refusal
// is reported as an error from Sign.
type Signer interface {
	PublicKey() ed25519.PublicKey
	Sign(txn *solana.Transaction) error
}

// LocalSigner signs with an in-memory private key.
type LocalSigner struct {
	key ed25519.PrivateKey
}

func NewLocalSigner(key ed25519.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

func (s *LocalSigner) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *LocalSigner) Sign(txn *solana.Transaction) error {
	return txn.Sign(s.key)
}

type actionKind uint8

const (
	actionCreate actionKind = iota
	actionFund
	actionWithdraw
	numActionKinds
)

func (k actionKind) String() string {
	switch k {
	case actionCreate:
		return "create"
	case actionFund:
		return "fund"
	case actionWithdraw:
		return "withdraw"
	}
	return "unknown"
}

// Engine executes time lock actions against a single party's wallet.
//
// Engine is safe for concurrent use. At most one action per (kind, asset
// class) pair runs at a time; conflicting calls fail fast with
// ErrActionInFlight rather than queueing.
type Engine struct {
	log    *logrus.Entry
	client solana.Client
	signer Signer
	cfg    Config

	// One guard slot per (kind, asset class) pair.
	inFlight [numActionKinds * 2]int32

	viewMu   sync.RWMutex
	lastView *Portfolio
}

// New returns an engine for the given party.
func New(client solana.Client, signer Signer, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":  "engine",
			"party": base58.Encode(signer.PublicKey()),
		}),
		client: client,
		signer: signer,
		cfg:    cfg,
	}, nil
}

func guardSlot(kind actionKind, class timelockwallet.AssetKind) int {
	return int(kind)*2 + int(class)
}

// acquire takes the in-flight guard for the action, or fails with
// ErrActionInFlight. The returned release must be called exactly once.
func (e *Engine) acquire(kind actionKind, class timelockwallet.AssetKind) (func(), error) {
	slot := guardSlot(kind, class)
	if !atomic.CompareAndSwapInt32(&e.inFlight[slot], 0, 1) {
		return nil, actionError(CategoryInFlight, ErrActionInFlight)
	}
	return func() { atomic.StoreInt32(&e.inFlight[slot], 0) }, nil
}

// CreateLockParams describes a lock to be created.
type CreateLockParams struct {
	Kind   timelockwallet.AssetKind
	Amount uint64

	// UnlockAt is when withdrawal becomes possible.
	UnlockAt time.Time

	// Mint is required for token locks and ignored for native locks.
	Mint ed25519.PublicKey
}

// ActionResult reports the terminal state of a submitted action. A
// StatusUnknown result is not a failure: the poll ceiling elapsed without an
// observation, and the caller holds the signature to reconcile against later.
type ActionResult struct {
	Signature solana.Signature
	Status    Status
	Slot      uint64
}

// CreateLock creates and funds a lock for the configured party. For native
// locks the funding transfer rides in the same transaction as the program
// instruction; for token locks the program moves the tokens itself.
func (e *Engine) CreateLock(ctx context.Context, params CreateLockParams) (*ActionResult, error) {
	if params.Amount == 0 {
		return nil, actionErrorf(CategoryValidation, "amount must be positive")
	}
	if !params.UnlockAt.After(time.Now()) {
		return nil, actionErrorf(CategoryValidation, "unlock time must be in the future")
	}
	if params.Kind == timelockwallet.AssetSpl && len(params.Mint) != ed25519.PublicKeySize {
		return nil, actionErrorf(CategoryValidation, "mint is required for token locks")
	}

	release, err := e.acquire(actionCreate, params.Kind)
	if err != nil {
		return nil, err
	}
	defer release()

	log := e.log.WithFields(logrus.Fields{
		"action": "create",
		"class":  params.Kind.String(),
	})

	if err := e.checkNoLiveLock(params.Kind); err != nil {
		return nil, err
	}

	txn, err := e.assembleCreate(params)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, log, txn)
}

// FundLock tops up an existing native lock. Token locks are funded once at
// creation and cannot be topped up.
func (e *Engine) FundLock(ctx context.Context, amount uint64) (*ActionResult, error) {
	if amount == 0 {
		return nil, actionErrorf(CategoryValidation, "amount must be positive")
	}

	release, err := e.acquire(actionFund, timelockwallet.AssetSol)
	if err != nil {
		return nil, err
	}
	defer release()

	log := e.log.WithField("action", "fund")

	if _, err := e.fetchLockRecord(timelockwallet.AssetSol); err != nil {
		return nil, err
	}

	txn, err := e.assembleFund(amount)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, log, txn)
}

// WithdrawParams describes a withdrawal.
type WithdrawParams struct {
	Kind timelockwallet.AssetKind

	// Mint is required for token locks. It must match the mint recorded in
	// the lock.
	Mint ed25519.PublicKey
}

// Withdraw releases an expired lock back to the party. The on-chain record
// is consulted first so obviously doomed submissions are rejected locally,
// but the program remains the final authority on expiry.
func (e *Engine) Withdraw(ctx context.Context, params WithdrawParams) (*ActionResult, error) {
	if params.Kind == timelockwallet.AssetSpl && len(params.Mint) != ed25519.PublicKeySize {
		return nil, actionErrorf(CategoryValidation, "mint is required for token locks")
	}

	release, err := e.acquire(actionWithdraw, params.Kind)
	if err != nil {
		return nil, err
	}
	defer release()

	log := e.log.WithFields(logrus.Fields{
		"action": "withdraw",
		"class":  params.Kind.String(),
	})

	rec, err := e.fetchLockRecord(params.Kind)
	if err != nil {
		return nil, err
	}

	if rec.Kind != params.Kind {
		return nil, actionError(CategoryProgram, timelockwallet.ErrWrongAssetKind)
	}
	if time.Now().Unix() < rec.UnlockTimestamp {
		return nil, actionError(CategoryProgram, timelockwallet.ErrTimeLockNotExpired)
	}
	if params.Kind == timelockwallet.AssetSpl && !rec.Mint.Equal(params.Mint) {
		return nil, actionErrorf(CategoryValidation, "mint does not match the lock record")
	}

	var recreateHolding bool
	if params.Kind == timelockwallet.AssetSpl {
		recreateHolding, err = e.holdingMissing(params.Mint)
		if err != nil {
			return nil, err
		}
	}

	txn, err := e.assembleWithdraw(params, recreateHolding)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, log, txn)
}

// RequestTestFunds requests an airdrop of the configured amount to the party
// and waits for the transfer to confirm. Only useful on test clusters.
func (e *Engine) RequestTestFunds(ctx context.Context) (*ActionResult, error) {
	sig, err := e.client.RequestAirdrop(e.signer.PublicKey(), e.cfg.AirdropLamports, e.cfg.commitment())
	if err != nil {
		return nil, actionError(CategoryNetwork, err)
	}

	anchor, err := e.client.GetLatestAnchor()
	if err != nil {
		return nil, actionError(CategoryNetwork, err)
	}

	confirmation, err := e.WaitForConfirmation(ctx, PendingSubmission{
		Signature:   sig,
		Anchor:      anchor,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &ActionResult{
		Signature: sig,
		Status:    confirmation.Status,
		Slot:      confirmation.Slot,
	}, nil
}

// execute binds a recent anchor, signs, submits, and waits for the outcome.
func (e *Engine) execute(ctx context.Context, log *logrus.Entry, txn solana.Transaction) (*ActionResult, error) {
	anchor, err := e.client.GetLatestAnchor()
	if err != nil {
		return nil, actionError(CategoryNetwork, err)
	}
	txn.SetBlockhash(anchor.Blockhash)

	if err := e.signer.Sign(&txn); err != nil {
		log.WithError(err).Info("signer declined")
		return nil, actionError(CategoryDeclined, errors.Wrap(ErrSignatureDeclined, err.Error()))
	}

	sig, err := e.client.SubmitTransaction(txn, e.cfg.commitment())
	if err != nil {
		if txErr := asTransactionError(err); txErr != nil {
			return nil, e.programFailure(sig, txErr)
		}
		return nil, actionError(CategoryNetwork, err)
	}

	log.WithField("signature", base58.Encode(sig[:])).Debug("submitted")

	confirmation, err := e.WaitForConfirmation(ctx, PendingSubmission{
		Signature:   sig,
		Anchor:      anchor,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	result := &ActionResult{
		Signature: sig,
		Status:    confirmation.Status,
		Slot:      confirmation.Slot,
	}

	switch confirmation.Status {
	case StatusFailed:
		return result, e.programFailure(sig, confirmation.Err)
	case StatusExpired:
		return result, actionErrorf(CategoryExpired, "transaction expired before it was observed")
	case StatusUnknown:
		// The transaction may still land. Callers decide whether to keep
		// polling or reconcile; rendering this as a failure would be wrong.
		log.Warn("outcome unknown after poll ceiling")
	}

	return result, nil
}

// programFailure maps a transaction failure to the program's error space
// where possible.
func (e *Engine) programFailure(sig solana.Signature, err error) error {
	var txErr *solana.TransactionError
	switch t := err.(type) {
	case *solana.TransactionError:
		txErr = t
	case *solana.InstructionError:
		if code := t.CustomError(); code != nil {
			if progErr := timelockwallet.ProgramError(*code); progErr >= timelockwallet.ErrTimeLockNotExpired && progErr <= timelockwallet.ErrInsufficientVaultBalance {
				return actionError(CategoryProgram, progErr)
			}
		}
		return actionError(CategoryProgram, t)
	}

	if progErr, ok := timelockwallet.FromTransactionError(txErr); ok {
		return actionError(CategoryProgram, progErr)
	}
	if err == nil {
		return actionErrorf(CategoryProgram, "transaction %s failed", base58.Encode(sig[:]))
	}
	return actionError(CategoryProgram, err)
}

func asTransactionError(err error) error {
	switch err.(type) {
	case *solana.TransactionError, *solana.InstructionError:
		return err
	}
	return nil
}

// checkNoLiveLock rejects a create when a lock account already exists for
// the class.
func (e *Engine) checkNoLiveLock(kind timelockwallet.AssetKind) error {
	lock, err := timelockwallet.GetLockAddress(kind, e.signer.PublicKey())
	if err != nil {
		return actionError(CategoryResolution, err)
	}

	info, err := e.client.GetAccountInfo(lock, e.cfg.commitment())
	if err == solana.ErrNoAccountInfo {
		return nil
	}
	if err != nil {
		return actionError(CategoryNetwork, err)
	}

	if info.Owner.Equal(timelockwallet.ProgramID) && len(info.Data) > 0 {
		return actionError(CategoryLockExists, ErrLockExists)
	}
	return nil
}

// holdingMissing reports whether the party's associated token account for
// the mint is absent and must be recreated before a withdrawal.
func (e *Engine) holdingMissing(mint ed25519.PublicKey) (bool, error) {
	holding, err := token.GetAssociatedAccount(e.signer.PublicKey(), mint)
	if err != nil {
		return false, actionError(CategoryResolution, err)
	}

	_, err = e.client.GetAccountInfo(holding, e.cfg.commitment())
	if err == solana.ErrNoAccountInfo {
		return true, nil
	}
	if err != nil {
		return false, actionError(CategoryNetwork, err)
	}
	return false, nil
}

// fetchLockRecord loads and decodes the lock account for the class.
func (e *Engine) fetchLockRecord(kind timelockwallet.AssetKind) (*timelockwallet.LockRecord, error) {
	lock, err := timelockwallet.GetLockAddress(kind, e.signer.PublicKey())
	if err != nil {
		return nil, actionError(CategoryResolution, err)
	}

	info, err := e.client.GetAccountInfo(lock, e.cfg.commitment())
	if err == solana.ErrNoAccountInfo {
		return nil, actionError(CategoryValidation, ErrLockNotFound)
	}
	if err != nil {
		return nil, actionError(CategoryNetwork, err)
	}

	rec, err := timelockwallet.UnmarshalLockRecord(info.Data)
	if err != nil {
		return nil, actionError(CategoryValidation, err)
	}
	return rec, nil
}
