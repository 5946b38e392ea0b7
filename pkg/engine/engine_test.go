package engine

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/solana/computebudget"
	"github.com/timelock-wallet/timelock-client/pkg/solana/system"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
	"github.com/timelock-wallet/timelock-client/pkg/timelockwallet"
)

// fakeClient implements solana.Client with overridable hooks. The zero value
// behaves like an empty, healthy cluster.
type fakeClient struct {
	getAccountInfo     func(ed25519.PublicKey, solana.Commitment) (solana.AccountInfo, error)
	getSignatureStatus func(solana.Signature) (*solana.SignatureStatus, error)
	getBlockHeight     func(solana.Commitment) (uint64, error)
	getTokenBalance    func(ed25519.PublicKey) (uint64, uint64, error)
	submit             func(solana.Transaction, solana.Commitment) (solana.Signature, error)

	submitted []solana.Transaction
}

func (f *fakeClient) GetAccountInfo(account ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error) {
	if f.getAccountInfo != nil {
		return f.getAccountInfo(account, commitment)
	}
	return solana.AccountInfo{}, solana.ErrNoAccountInfo
}

func (f *fakeClient) GetBalance(ed25519.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) GetBlockHeight(commitment solana.Commitment) (uint64, error) {
	if f.getBlockHeight != nil {
		return f.getBlockHeight(commitment)
	}
	return 100, nil
}

func (f *fakeClient) GetLatestAnchor() (solana.Anchor, error) {
	var bh solana.Blockhash
	bh[0] = 1
	return solana.Anchor{Blockhash: bh, LastValidBlockHeight: 1000}, nil
}

func (f *fakeClient) GetMinimumBalanceForRentExemption(uint64) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) GetSignatureStatus(sig solana.Signature) (*solana.SignatureStatus, error) {
	if f.getSignatureStatus != nil {
		return f.getSignatureStatus(sig)
	}
	return confirmedStatus(), nil
}

func (f *fakeClient) GetTokenAccountBalance(account ed25519.PublicKey) (uint64, uint64, error) {
	if f.getTokenBalance != nil {
		return f.getTokenBalance(account)
	}
	return 0, 0, solana.ErrNoBalance
}

func (f *fakeClient) RequestAirdrop(ed25519.PublicKey, uint64, solana.Commitment) (solana.Signature, error) {
	return solana.Signature{7}, nil
}

func (f *fakeClient) SubmitTransaction(txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	f.submitted = append(f.submitted, txn)
	if f.submit != nil {
		return f.submit(txn, commitment)
	}
	return txn.Signatures[0], nil
}

func confirmedStatus() *solana.SignatureStatus {
	confirmations := 5
	return &solana.SignatureStatus{
		Slot:               42,
		Confirmations:      &confirmations,
		ConfirmationStatus: "confirmed",
	}
}

func testConfig() Config {
	return Config{
		Endpoint:         "http://localhost:8899",
		Commitment:       "confirmed",
		PriorityFee:      1,
		ComputeUnitLimit: 200_000,
		PollInterval:     time.Millisecond,
		PollCeiling:      50 * time.Millisecond,
		DefaultDecimals:  6,
		AirdropLamports:  1_000_000_000,
	}
}

func newTestEngine(t *testing.T, client solana.Client) (*Engine, *LocalSigner) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer := NewLocalSigner(priv)
	e, err := New(client, signer, testConfig())
	require.NoError(t, err)

	return e, signer
}

// lockRecordData builds raw lock account bytes in the on-chain layout.
func lockRecordData(initializer ed25519.PublicKey, amount uint64, unlock int64, kind timelockwallet.AssetKind, mint ed25519.PublicKey) []byte {
	data := make([]byte, 8+32+8+8+1+1+33)

	disc := sha256.Sum256([]byte("account:TimeLockAccount"))
	copy(data, disc[:8])
	copy(data[8:], initializer)
	binary.LittleEndian.PutUint64(data[40:], amount)
	binary.LittleEndian.PutUint64(data[48:], uint64(unlock))
	data[56] = 255
	data[57] = byte(kind)
	if len(mint) > 0 {
		data[58] = 1
		copy(data[59:], mint)
	}

	return data
}

func TestCreateLock_Native(t *testing.T) {
	client := &fakeClient{}
	e, signer := newTestEngine(t, client)

	result, err := e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   2_000_000_000,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)
	assert.EqualValues(t, 42, result.Slot)

	require.Len(t, client.submitted, 1)
	txn := client.submitted[0]

	// Prelude (fee, limit), program instruction, then the funding transfer.
	require.Len(t, txn.Message.Instructions, 4)

	fee, err := computebudget.ParseSetComputeUnitPriceIxnData(txn.Message.Instructions[0].Data)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fee)

	limit, err := computebudget.ParseSetComputeUnitLimitIxnData(txn.Message.Instructions[1].Data)
	require.NoError(t, err)
	assert.EqualValues(t, 200_000, limit)

	// Program instruction payload: discriminator, amount, timestamp.
	data := txn.Message.Instructions[2].Data
	require.Len(t, data, 24)

	disc := sha256.Sum256([]byte("global:initialize_lock_sol"))
	assert.Equal(t, disc[:8], data[:8])
	assert.EqualValues(t, 2_000_000_000, binary.LittleEndian.Uint64(data[8:16]))

	// The funding transfer rides last, party to lock, exact amount.
	transfer, err := system.DecompileTransfer(txn.Message, 3)
	require.NoError(t, err)

	lock, err := timelockwallet.GetLockAddress(timelockwallet.AssetSol, signer.PublicKey())
	require.NoError(t, err)

	assert.EqualValues(t, signer.PublicKey(), transfer.Funder)
	assert.EqualValues(t, lock, transfer.Receiver)
	assert.EqualValues(t, 2_000_000_000, transfer.Lamports)

	// Signed by the party over the compiled message.
	assert.True(t, ed25519.Verify(signer.PublicKey(), txn.Message.Marshal(), txn.Signatures[0][:]))
}

func TestCreateLock_Token(t *testing.T) {
	client := &fakeClient{}
	e, _ := newTestEngine(t, client)

	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSpl,
		Amount:   500,
		UnlockAt: time.Now().Add(time.Hour),
		Mint:     mint,
	})
	require.NoError(t, err)

	require.Len(t, client.submitted, 1)
	txn := client.submitted[0]

	// No client-side transfer for token locks; the program moves the funds.
	require.Len(t, txn.Message.Instructions, 3)

	data := txn.Message.Instructions[2].Data
	disc := sha256.Sum256([]byte("global:initialize_lock_spl"))
	assert.Equal(t, disc[:8], data[:8])
}

func TestCreateLock_Validation(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	var actionErr *ActionError

	_, err := e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   0,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryValidation, actionErr.Category)

	_, err = e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   1,
		UnlockAt: time.Now().Add(-time.Hour),
	})
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryValidation, actionErr.Category)

	_, err = e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSpl,
		Amount:   1,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryValidation, actionErr.Category)
}

func TestCreateLock_AlreadyExists(t *testing.T) {
	var party ed25519.PublicKey

	client := &fakeClient{
		getAccountInfo: func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
			return solana.AccountInfo{
				Owner: timelockwallet.ProgramID,
				Data:  lockRecordData(party, 1, time.Now().Unix()+3600, timelockwallet.AssetSol, nil),
			}, nil
		},
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	_, err := e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   1,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, ErrLockExists)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryLockExists, actionErr.Category)
	assert.Empty(t, client.submitted)
}

type decliningSigner struct {
	pub ed25519.PublicKey
}

func (s *decliningSigner) PublicKey() ed25519.PublicKey { return s.pub }

func (s *decliningSigner) Sign(*solana.Transaction) error {
	return errors.New("user rejected the request")
}

func TestCreateLock_SignerDeclined(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	client := &fakeClient{}
	e, err := New(client, &decliningSigner{pub: pub}, testConfig())
	require.NoError(t, err)

	_, err = e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   1,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, ErrSignatureDeclined)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryDeclined, actionErr.Category)

	// Nothing reached the network.
	assert.Empty(t, client.submitted)
}

func TestCreateLock_UnknownOutcomeIsNotAnError(t *testing.T) {
	// The signature is never observed and the anchor never ages out, so the
	// poll ceiling elapses. The caller gets the signature back to reconcile
	// with, not a failure.
	client := &fakeClient{
		getSignatureStatus: func(solana.Signature) (*solana.SignatureStatus, error) {
			return nil, solana.ErrSignatureNotFound
		},
	}

	e, _ := newTestEngine(t, client)

	result, err := e.CreateLock(context.Background(), CreateLockParams{
		Kind:     timelockwallet.AssetSol,
		Amount:   1,
		UnlockAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusUnknown, result.Status)
	assert.NotEqual(t, solana.Signature{}, result.Signature)
}

func TestInFlightGuard(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	release, err := e.acquire(actionCreate, timelockwallet.AssetSol)
	require.NoError(t, err)

	// Same kind and class conflicts.
	_, err = e.acquire(actionCreate, timelockwallet.AssetSol)
	require.ErrorIs(t, err, ErrActionInFlight)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryInFlight, actionErr.Category)

	// Different class or kind does not.
	releaseSpl, err := e.acquire(actionCreate, timelockwallet.AssetSpl)
	require.NoError(t, err)
	releaseSpl()

	releaseWithdraw, err := e.acquire(actionWithdraw, timelockwallet.AssetSol)
	require.NoError(t, err)
	releaseWithdraw()

	release()

	releaseAgain, err := e.acquire(actionCreate, timelockwallet.AssetSol)
	require.NoError(t, err)
	releaseAgain()
}

func TestWithdraw_Native(t *testing.T) {
	var party ed25519.PublicKey

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		return solana.AccountInfo{
			Owner: timelockwallet.ProgramID,
			Data:  lockRecordData(party, 100, time.Now().Unix()-10, timelockwallet.AssetSol, nil),
		}, nil
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	result, err := e.Withdraw(context.Background(), WithdrawParams{Kind: timelockwallet.AssetSol})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)

	require.Len(t, client.submitted, 1)
	txn := client.submitted[0]
	require.Len(t, txn.Message.Instructions, 3)

	// Withdraw carries no arguments, just the discriminator.
	data := txn.Message.Instructions[2].Data
	require.Len(t, data, 8)

	disc := sha256.Sum256([]byte("global:withdraw_sol"))
	assert.Equal(t, disc[:8], data)
}

func TestWithdraw_Token(t *testing.T) {
	var party, tokenLock, holding ed25519.PublicKey

	mint := make(ed25519.PublicKey, ed25519.PublicKeySize)
	mint[0] = 3

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		switch {
		case bytes.Equal(account, tokenLock):
			return solana.AccountInfo{
				Owner: timelockwallet.ProgramID,
				Data:  lockRecordData(party, 100, time.Now().Unix()-10, timelockwallet.AssetSpl, mint),
			}, nil
		case bytes.Equal(account, holding):
			return solana.AccountInfo{Owner: mint, Data: []byte{1}}, nil
		}
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	var err error
	tokenLock, err = timelockwallet.GetLockAddress(timelockwallet.AssetSpl, party)
	require.NoError(t, err)
	holding, err = token.GetAssociatedAccount(party, mint)
	require.NoError(t, err)

	result, err := e.Withdraw(context.Background(), WithdrawParams{
		Kind: timelockwallet.AssetSpl,
		Mint: mint,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)

	require.Len(t, client.submitted, 1)
	txn := client.submitted[0]

	// Holding exists, so no recreation instruction rides along.
	require.Len(t, txn.Message.Instructions, 3)

	disc := sha256.Sum256([]byte("global:withdraw_spl"))
	assert.Equal(t, disc[:8], txn.Message.Instructions[2].Data)
}

func TestWithdraw_TokenRecreatesMissingHolding(t *testing.T) {
	var party, tokenLock ed25519.PublicKey

	mint := make(ed25519.PublicKey, ed25519.PublicKeySize)
	mint[0] = 4

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		if bytes.Equal(account, tokenLock) {
			return solana.AccountInfo{
				Owner: timelockwallet.ProgramID,
				Data:  lockRecordData(party, 100, time.Now().Unix()-10, timelockwallet.AssetSpl, mint),
			}, nil
		}
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	var err error
	tokenLock, err = timelockwallet.GetLockAddress(timelockwallet.AssetSpl, party)
	require.NoError(t, err)

	_, err = e.Withdraw(context.Background(), WithdrawParams{
		Kind: timelockwallet.AssetSpl,
		Mint: mint,
	})
	require.NoError(t, err)

	require.Len(t, client.submitted, 1)
	txn := client.submitted[0]

	// The recreation instruction precedes the program instruction.
	require.Len(t, txn.Message.Instructions, 4)

	createIxn := txn.Message.Instructions[2]
	program := txn.Message.Accounts[createIxn.ProgramIndex]
	assert.EqualValues(t, token.AssociatedTokenAccountProgramKey, program)

	disc := sha256.Sum256([]byte("global:withdraw_spl"))
	assert.Equal(t, disc[:8], txn.Message.Instructions[3].Data)
}

func TestWithdraw_NotExpired(t *testing.T) {
	var party ed25519.PublicKey

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		return solana.AccountInfo{
			Owner: timelockwallet.ProgramID,
			Data:  lockRecordData(party, 100, time.Now().Unix()+3600, timelockwallet.AssetSol, nil),
		}, nil
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	_, err := e.Withdraw(context.Background(), WithdrawParams{Kind: timelockwallet.AssetSol})
	require.ErrorIs(t, err, timelockwallet.ErrTimeLockNotExpired)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CategoryProgram, actionErr.Category)
	assert.Empty(t, client.submitted)
}

func TestWithdraw_NoLock(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	_, err := e.Withdraw(context.Background(), WithdrawParams{Kind: timelockwallet.AssetSol})
	require.ErrorIs(t, err, ErrLockNotFound)
}

func TestFundLock_NoLock(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	_, err := e.FundLock(context.Background(), 100)
	require.ErrorIs(t, err, ErrLockNotFound)
}

func TestFundLock_Native(t *testing.T) {
	var party ed25519.PublicKey

	client := &fakeClient{}
	client.getAccountInfo = func(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
		return solana.AccountInfo{
			Owner: timelockwallet.ProgramID,
			Data:  lockRecordData(party, 100, time.Now().Unix()+3600, timelockwallet.AssetSol, nil),
		}, nil
	}

	e, signer := newTestEngine(t, client)
	party = signer.PublicKey()

	result, err := e.FundLock(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)

	require.Len(t, client.submitted, 1)
	data := client.submitted[0].Message.Instructions[2].Data
	require.Len(t, data, 16)

	disc := sha256.Sum256([]byte("global:fund_sol_lock"))
	assert.Equal(t, disc[:8], data[:8])
	assert.EqualValues(t, 250, binary.LittleEndian.Uint64(data[8:]))
}

func TestRequestTestFunds(t *testing.T) {
	e, _ := newTestEngine(t, &fakeClient{})

	result, err := e.RequestTestFunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)
	assert.Equal(t, solana.Signature{7}, result.Signature)
}
