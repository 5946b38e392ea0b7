package timelockwallet

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/timelock-wallet/timelock-client/pkg/idl"
	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/solana/system"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
)

// ResolutionError indicates one or more declared account roles could not be
// bound to a concrete address. Every unresolved role is reported, not just
// the first, so a caller fixes the context in one pass.
type ResolutionError struct {
	Operation string
	Missing   []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: unresolved roles: %s", e.Operation, strings.Join(e.Missing, ", "))
}

// ResolveContext carries the caller-known facts an operation's account roles
// are derived from.
type ResolveContext struct {
	// Party is the transaction authority and lock initializer.
	Party ed25519.PublicKey

	// Kind selects the asset class, and with it the lock derivation seed.
	Kind AssetKind

	// Mint is the token mint. Required for token operations only.
	Mint ed25519.PublicKey
}

// roleTargets maps canonical role names to resolution targets. Interface
// documents name the same slot differently across versions, so each target
// carries its observed synonyms.
type roleTarget uint8

const (
	targetParty roleTarget = iota
	targetLock
	targetMint
	targetUserHolding
	targetVaultHolding
	targetSystemProgram
	targetTokenProgram
	targetAssociatedTokenProgram
)

var roleSynonyms = map[string]roleTarget{
	"initializer": targetParty,
	"authority":   targetParty,
	"owner":       targetParty,
	"signer":      targetParty,
	"payer":       targetParty,

	"lock_account": targetLock,
	"lock_record":  targetLock,
	"locker":       targetLock,

	"mint": targetMint,

	"user_ata":     targetUserHolding,
	"user_holding": targetUserHolding,

	"vault_ata":     targetVaultHolding,
	"vault_holding": targetVaultHolding,

	"system_program":           targetSystemProgram,
	"token_program":            targetTokenProgram,
	"associated_token_program": targetAssociatedTokenProgram,
}

// ResolveAccounts binds every account role the operation declares to a
// concrete address, in declared order, with the declared signer and
// writability flags. Derivations are pure; no network access happens here.
func ResolveAccounts(op *idl.Operation, ctx ResolveContext) ([]solana.AccountMeta, error) {
	lock, _, err := GetLockAddressAndBump(ctx.Kind, ctx.Party)
	if err != nil {
		return nil, err
	}

	metas := make([]solana.AccountMeta, 0, len(op.Roles))

	var missing []string
	for _, role := range op.Roles {
		key, err := resolveRole(role.Name, ctx, lock)
		if err != nil {
			return nil, err
		}
		if key == nil {
			missing = append(missing, role.Name)
			continue
		}

		if role.IsWritable {
			metas = append(metas, solana.NewAccountMeta(key, role.IsSigner))
		} else {
			metas = append(metas, solana.NewReadonlyAccountMeta(key, role.IsSigner))
		}
	}

	if len(missing) > 0 {
		return nil, &ResolutionError{Operation: op.Name, Missing: missing}
	}

	return metas, nil
}

func resolveRole(name string, ctx ResolveContext, lock ed25519.PublicKey) (ed25519.PublicKey, error) {
	target, ok := roleSynonyms[name]
	if !ok {
		return nil, nil
	}

	switch target {
	case targetParty:
		if len(ctx.Party) == 0 {
			return nil, nil
		}
		return ctx.Party, nil
	case targetLock:
		return lock, nil
	case targetMint:
		if len(ctx.Mint) == 0 {
			return nil, nil
		}
		return ctx.Mint, nil
	case targetUserHolding:
		if len(ctx.Mint) == 0 {
			return nil, nil
		}
		return token.GetAssociatedAccount(ctx.Party, ctx.Mint)
	case targetVaultHolding:
		if len(ctx.Mint) == 0 {
			return nil, nil
		}
		return GetVaultAddress(lock, ctx.Mint)
	case targetSystemProgram:
		return system.ProgramKey[:], nil
	case targetTokenProgram:
		return token.ProgramKey, nil
	case targetAssociatedTokenProgram:
		return token.AssociatedTokenAccountProgramKey, nil
	}

	return nil, nil
}
