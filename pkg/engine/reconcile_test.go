package engine

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/timelockwallet"
)

func TestRefresh_NoLocks(t *testing.T) {
	e, signer := newTestEngine(t, &fakeClient{})

	portfolio, err := e.Refresh()
	require.NoError(t, err)

	assert.EqualValues(t, signer.PublicKey(), portfolio.Party)

	assert.False(t, portfolio.Native.Exists)
	assert.False(t, portfolio.Token.Exists)
	assert.Equal(t, timelockwallet.AssetSol, portfolio.Native.Class)
	assert.Equal(t, timelockwallet.AssetSpl, portfolio.Token.Class)

	// Addresses are derivable even when nothing exists on chain.
	assert.NotEmpty(t, portfolio.Native.Address)
	assert.NotEmpty(t, portfolio.Token.Address)
	assert.NotEqualValues(t, portfolio.Native.Address, portfolio.Token.Address)
}

func TestRefresh_Native(t *testing.T) {
	var party ed25519.PublicKey
	var nativeLock ed25519.PublicKey
	unlock := time.Now().Add(-time.Minute).Unix()

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		if !bytes.Equal(account, nativeLock) {
			return solana.AccountInfo{}, solana.ErrNoAccountInfo
		}
		return solana.AccountInfo{
			Owner:    timelockwallet.ProgramID,
			Lamports: 5_000_000,
			Data:     lockRecordData(party, 4_000_000, unlock, timelockwallet.AssetSol, nil),
		}, nil
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	var err error
	nativeLock, err = timelockwallet.GetLockAddress(timelockwallet.AssetSol, party)
	require.NoError(t, err)

	portfolio, err := e.Refresh()
	require.NoError(t, err)

	view := portfolio.Native
	require.True(t, view.Exists)
	assert.EqualValues(t, party, view.Initializer)
	assert.EqualValues(t, 4_000_000, view.Amount)
	assert.EqualValues(t, 9, view.Decimals)
	assert.EqualValues(t, 5_000_000, view.Lamports)
	assert.True(t, view.Expired)
	assert.Equal(t, time.Unix(unlock, 0), view.UnlockAt)

	assert.False(t, portfolio.Token.Exists)
}

func TestRefresh_TokenVaultAuthoritative(t *testing.T) {
	var party, tokenLock, mint ed25519.PublicKey

	mint = make(ed25519.PublicKey, ed25519.PublicKeySize)
	for i := range mint {
		mint[i] = byte(i + 50)
	}

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		if !bytes.Equal(account, tokenLock) {
			return solana.AccountInfo{}, solana.ErrNoAccountInfo
		}
		return solana.AccountInfo{
			Owner: timelockwallet.ProgramID,
			Data:  lockRecordData(party, 5, time.Now().Add(time.Hour).Unix(), timelockwallet.AssetSpl, mint),
		}, nil
	}
	client.getTokenBalance = func(vault ed25519.PublicKey) (uint64, uint64, error) {
		return 999, 6, nil
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	var err error
	tokenLock, err = timelockwallet.GetLockAddress(timelockwallet.AssetSpl, party)
	require.NoError(t, err)

	portfolio, err := e.Refresh()
	require.NoError(t, err)

	view := portfolio.Token
	require.True(t, view.Exists)
	assert.EqualValues(t, mint, view.Mint)
	assert.False(t, view.Expired)

	// The vault's live balance wins over the recorded amount.
	assert.EqualValues(t, 999, view.Amount)
	assert.EqualValues(t, 6, view.Decimals)

	expectedVault, err := timelockwallet.GetVaultAddress(tokenLock, mint)
	require.NoError(t, err)
	assert.EqualValues(t, expectedVault, view.Vault)
}

func TestRefresh_VaultUnreadableFallsBack(t *testing.T) {
	var party, tokenLock, mint ed25519.PublicKey

	mint = make(ed25519.PublicKey, ed25519.PublicKeySize)
	mint[0] = 9

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		if !bytes.Equal(account, tokenLock) {
			return solana.AccountInfo{}, solana.ErrNoAccountInfo
		}
		return solana.AccountInfo{
			Owner: timelockwallet.ProgramID,
			Data:  lockRecordData(party, 1234, time.Now().Add(time.Hour).Unix(), timelockwallet.AssetSpl, mint),
		}, nil
	}
	client.getTokenBalance = func(ed25519.PublicKey) (uint64, uint64, error) {
		return 0, 0, errors.New("node unavailable")
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	var err error
	tokenLock, err = timelockwallet.GetLockAddress(timelockwallet.AssetSpl, party)
	require.NoError(t, err)

	portfolio, err := e.Refresh()
	require.NoError(t, err)

	view := portfolio.Token
	require.True(t, view.Exists)
	assert.EqualValues(t, 1234, view.Amount)
	assert.EqualValues(t, e.cfg.DefaultDecimals, view.Decimals)
}

func TestRefresh_ForeignAccountIgnored(t *testing.T) {
	// An account at the derived address that the program does not own is
	// not a lock.
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	client := &fakeClient{}
	client.getAccountInfo = func(ed25519.PublicKey, solana.Commitment) (solana.AccountInfo, error) {
		return solana.AccountInfo{Owner: other, Data: []byte{1, 2, 3}}, nil
	}

	e, _ := newTestEngine(t, client)

	portfolio, err := e.Refresh()
	require.NoError(t, err)
	assert.False(t, portfolio.Native.Exists)
	assert.False(t, portfolio.Token.Exists)
}

func TestRefresh_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	assert.Nil(t, e.CachedPortfolio())

	a, err := e.Refresh()
	require.NoError(t, err)
	b, err := e.Refresh()
	require.NoError(t, err)

	assert.EqualValues(t, a.Native.Address, b.Native.Address)
	assert.EqualValues(t, a.Token.Address, b.Token.Address)
	assert.Equal(t, a.Native.Exists, b.Native.Exists)
	assert.Equal(t, a.Token.Exists, b.Token.Exists)

	// The last successful refresh is cached.
	assert.Equal(t, b, e.CachedPortfolio())
}
