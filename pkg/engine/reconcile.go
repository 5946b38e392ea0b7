package engine

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/timelockwallet"
)

// TimeLockView is the reconciled state of one asset class for the party.
type TimeLockView struct {
	Class   timelockwallet.AssetKind
	Address ed25519.PublicKey

	// Exists reports whether a live lock account was found. The remaining
	// fields are only meaningful when it is set.
	Exists bool

	Initializer ed25519.PublicKey
	UnlockAt    time.Time
	Expired     bool

	// Amount is the balance in raw units. For token locks this is the
	// vault's live balance; the recorded amount is only a fallback when the
	// vault cannot be read. For native locks it is the recorded amount.
	Amount   uint64
	Decimals uint8

	// Token lock fields. Nil or zero for native locks.
	Mint  ed25519.PublicKey
	Vault ed25519.PublicKey

	// Lamports is the lock account's full lamport balance, including the
	// rent exempt reserve.
	Lamports uint64
}

// Portfolio is a point-in-time reconciled view over both asset classes.
type Portfolio struct {
	Party     ed25519.PublicKey
	Native    TimeLockView
	Token     TimeLockView
	FetchedAt time.Time
}

// Refresh reconciles the local view against on-chain state. Both asset
// classes are fetched concurrently. Refresh never mutates anything on chain
// and is safe to call at any time, including while an action is in flight.
func (e *Engine) Refresh() (*Portfolio, error) {
	portfolio := &Portfolio{
		Party:     e.signer.PublicKey(),
		FetchedAt: time.Now(),
	}

	var wg sync.WaitGroup
	var nativeErr, tokenErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		portfolio.Native, nativeErr = e.reconcileClass(timelockwallet.AssetSol)
	}()
	go func() {
		defer wg.Done()
		portfolio.Token, tokenErr = e.reconcileClass(timelockwallet.AssetSpl)
	}()
	wg.Wait()

	if nativeErr != nil {
		return nil, nativeErr
	}
	if tokenErr != nil {
		return nil, tokenErr
	}

	// Last write wins. Concurrent refreshes race harmlessly; both views are
	// internally consistent snapshots.
	e.viewMu.Lock()
	e.lastView = portfolio
	e.viewMu.Unlock()

	return portfolio, nil
}

// CachedPortfolio returns the most recent successful reconciliation, or nil
// if Refresh has never completed.
func (e *Engine) CachedPortfolio() *Portfolio {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.lastView
}

func (e *Engine) reconcileClass(kind timelockwallet.AssetKind) (TimeLockView, error) {
	view := TimeLockView{Class: kind}

	lock, err := timelockwallet.GetLockAddress(kind, e.signer.PublicKey())
	if err != nil {
		return view, actionError(CategoryResolution, err)
	}
	view.Address = lock

	info, err := e.client.GetAccountInfo(lock, e.cfg.commitment())
	if err == solana.ErrNoAccountInfo {
		return view, nil
	}
	if err != nil {
		return view, actionError(CategoryNetwork, err)
	}

	if !info.Owner.Equal(timelockwallet.ProgramID) {
		return view, nil
	}

	rec, err := timelockwallet.UnmarshalLockRecord(info.Data)
	if err != nil {
		return view, actionError(CategoryValidation, err)
	}

	view.Exists = true
	view.Initializer = rec.Initializer
	view.UnlockAt = time.Unix(rec.UnlockTimestamp, 0)
	view.Expired = time.Now().Unix() >= rec.UnlockTimestamp
	view.Amount = rec.Amount
	view.Lamports = info.Lamports

	if kind == timelockwallet.AssetSol {
		view.Decimals = 9
		return view, nil
	}

	view.Mint = rec.Mint
	view.Decimals = e.cfg.DefaultDecimals

	if len(rec.Mint) == 0 {
		return view, nil
	}

	vault, err := timelockwallet.GetVaultAddress(lock, rec.Mint)
	if err != nil {
		return view, actionError(CategoryResolution, err)
	}
	view.Vault = vault

	// The vault holds the real balance. The recorded amount goes stale if
	// tokens are sent to the vault directly, so prefer the live balance and
	// only fall back when the vault cannot be read.
	amount, decimals, err := e.client.GetTokenAccountBalance(vault)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"method": "Refresh",
			"class":  kind.String(),
		}).Warn("failed to fetch vault balance, using recorded amount")
		return view, nil
	}

	view.Amount = amount
	view.Decimals = uint8(decimals)
	return view, nil
}
