package solana

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeys(t *testing.T, n int) ([]ed25519.PublicKey, []ed25519.PrivateKey) {
	pubs := make([]ed25519.PublicKey, n)
	privs := make([]ed25519.PrivateKey, n)

	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		pubs[i] = pub
		privs[i] = priv
	}

	return pubs, privs
}

func TestTransaction_PayerFirst(t *testing.T) {
	keys, _ := generateKeys(t, 4)
	payer := keys[0]
	program := keys[3]

	txn := NewTransaction(
		payer,
		NewInstruction(
			program,
			[]byte{1, 2, 3},
			NewAccountMeta(keys[1], true),
			NewReadonlyAccountMeta(keys[2], false),
		),
	)

	assert.Equal(t, payer, txn.Message.Accounts[0])
	assert.EqualValues(t, 2, txn.Message.Header.NumSignatures)
	assert.Len(t, txn.Signatures, 2)

	// Program comes last.
	assert.Equal(t, program, txn.Message.Accounts[len(txn.Message.Accounts)-1])
}

func TestTransaction_DuplicateAccountsPromoted(t *testing.T) {
	keys, _ := generateKeys(t, 3)
	payer := keys[0]
	program := keys[2]

	// The same account appears once readonly and once writable as a signer.
	// The compiled account list carries it once with the union of both.
	txn := NewTransaction(
		payer,
		NewInstruction(program, nil, NewReadonlyAccountMeta(keys[1], false)),
		NewInstruction(program, nil, NewAccountMeta(keys[1], true)),
	)

	count := 0
	for _, a := range txn.Message.Accounts {
		if bytes.Equal(a, keys[1]) {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.EqualValues(t, 2, txn.Message.Header.NumSignatures)
}

func TestTransaction_MarshalRoundTrip(t *testing.T) {
	keys, privs := generateKeys(t, 4)
	payer := keys[0]

	txn := NewTransaction(
		payer,
		NewInstruction(
			keys[3],
			[]byte{0xde, 0xad, 0xbe, 0xef},
			NewAccountMeta(keys[0], true),
			NewAccountMeta(keys[1], false),
			NewReadonlyAccountMeta(keys[2], false),
		),
	)

	var bh Blockhash
	for i := range bh {
		bh[i] = byte(i)
	}
	txn.SetBlockhash(bh)

	require.NoError(t, txn.Sign(privs[0]))

	var decoded Transaction
	require.NoError(t, decoded.Unmarshal(txn.Marshal()))

	assert.Equal(t, txn.Signatures, decoded.Signatures)
	assert.Equal(t, txn.Message.Header, decoded.Message.Header)
	assert.Equal(t, txn.Message.RecentBlockhash, decoded.Message.RecentBlockhash)
	assert.Equal(t, txn.Message.Instructions, decoded.Message.Instructions)
	require.Len(t, decoded.Message.Accounts, len(txn.Message.Accounts))
	for i := range txn.Message.Accounts {
		assert.EqualValues(t, txn.Message.Accounts[i], decoded.Message.Accounts[i])
	}

	// The signature verifies over the marshalled message.
	assert.True(t, ed25519.Verify(payer, decoded.Message.Marshal(), decoded.Signatures[0][:]))
}

func TestTransaction_SignUnknownAccount(t *testing.T) {
	keys, privs := generateKeys(t, 3)

	txn := NewTransaction(
		keys[0],
		NewInstruction(keys[1], nil, NewAccountMeta(keys[0], true)),
	)

	assert.Error(t, txn.Sign(privs[2]))
}

func TestMessage_RejectsVersioned(t *testing.T) {
	var m Message
	assert.Error(t, m.Unmarshal([]byte{0x80, 0x00, 0x00}))
}
