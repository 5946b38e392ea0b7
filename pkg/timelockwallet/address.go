package timelockwallet

import (
	"crypto/ed25519"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
)

// GetLockAddress returns the derived lock account for the initializer and
// asset class.
func GetLockAddress(kind AssetKind, initializer ed25519.PublicKey) (ed25519.PublicKey, error) {
	addr, _, err := GetLockAddressAndBump(kind, initializer)
	return addr, err
}

// GetLockAddressAndBump returns the derived lock account and its bump seed.
// The derivation is over the asset class seed prefix and the initializer key,
// so each (initializer, class) pair maps to exactly one lock account.
func GetLockAddressAndBump(kind AssetKind, initializer ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		ProgramID,
		[]byte(kind.seed()),
		initializer,
	)
}

// GetVaultAddress returns the token vault for a token lock: the associated
// token account owned by the derived lock account.
func GetVaultAddress(lock, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return token.GetAssociatedAccount(lock, mint)
}
