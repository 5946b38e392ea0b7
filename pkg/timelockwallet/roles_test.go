package timelockwallet

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelock-wallet/timelock-client/pkg/solana/system"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
)

func TestResolveAccounts_Native(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	party, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	op, ok := s.Operation(OpInitializeLockSol)
	require.True(t, ok)

	metas, err := ResolveAccounts(op, ResolveContext{
		Party: party,
		Kind:  AssetSol,
	})
	require.NoError(t, err)
	require.Len(t, metas, 3)

	lock, err := GetLockAddress(AssetSol, party)
	require.NoError(t, err)

	// Declared order: initializer, lock, system program.
	assert.EqualValues(t, party, metas[0].PublicKey)
	assert.True(t, metas[0].IsSigner)
	assert.True(t, metas[0].IsWritable)

	assert.EqualValues(t, lock, metas[1].PublicKey)
	assert.False(t, metas[1].IsSigner)
	assert.True(t, metas[1].IsWritable)

	assert.EqualValues(t, system.ProgramKey[:], metas[2].PublicKey)
	assert.False(t, metas[2].IsSigner)
	assert.False(t, metas[2].IsWritable)
}

func TestResolveAccounts_Token(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	party, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	op, ok := s.Operation(OpInitializeLockSpl)
	require.True(t, ok)

	metas, err := ResolveAccounts(op, ResolveContext{
		Party: party,
		Kind:  AssetSpl,
		Mint:  mint,
	})
	require.NoError(t, err)
	require.Len(t, metas, 8)

	lock, err := GetLockAddress(AssetSpl, party)
	require.NoError(t, err)
	userAta, err := token.GetAssociatedAccount(party, mint)
	require.NoError(t, err)
	vault, err := GetVaultAddress(lock, mint)
	require.NoError(t, err)

	assert.EqualValues(t, party, metas[0].PublicKey)
	assert.EqualValues(t, lock, metas[1].PublicKey)
	assert.EqualValues(t, mint, metas[2].PublicKey)
	assert.EqualValues(t, userAta, metas[3].PublicKey)
	assert.EqualValues(t, vault, metas[4].PublicKey)
	assert.EqualValues(t, token.ProgramKey, metas[5].PublicKey)
	assert.EqualValues(t, token.AssociatedTokenAccountProgramKey, metas[6].PublicKey)
	assert.EqualValues(t, system.ProgramKey[:], metas[7].PublicKey)
}

func TestResolveAccounts_ReportsAllMissing(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	party, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	op, ok := s.Operation(OpInitializeLockSpl)
	require.True(t, ok)

	// No mint: every mint-derived role is unresolvable, and all of them are
	// reported at once.
	_, err = ResolveAccounts(op, ResolveContext{
		Party: party,
		Kind:  AssetSpl,
	})
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, OpInitializeLockSpl, resErr.Operation)
	assert.ElementsMatch(t, []string{"mint", "user_ata", "vault_ata"}, resErr.Missing)
}

func TestResolveAccounts_Synonyms(t *testing.T) {
	party, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	lock, err := GetLockAddress(AssetSol, party)
	require.NoError(t, err)

	for role, expected := range map[string]ed25519.PublicKey{
		"initializer":  party,
		"authority":    party,
		"owner":        party,
		"payer":        party,
		"lock_account": lock,
		"lock_record":  lock,
		"locker":       lock,
	} {
		key, err := resolveRole(role, ResolveContext{Party: party, Kind: AssetSol}, lock)
		require.NoError(t, err)
		assert.EqualValues(t, expected, key, role)
	}
}
