package timelockwallet

import (
	"fmt"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
)

// ProgramError is a custom error code returned by the program. Codes start at
// the conventional custom error base of 6000.
type ProgramError uint32

const (
	ErrTimeLockNotExpired ProgramError = iota + 6000
	ErrInvalidAmount
	ErrUnlockInPast
	ErrBumpMissing
	ErrWrongAssetKind
	ErrInsufficientVaultBalance
)

func (e ProgramError) Error() string {
	switch e {
	case ErrTimeLockNotExpired:
		return "time lock has not expired yet"
	case ErrInvalidAmount:
		return "invalid amount"
	case ErrUnlockInPast:
		return "unlock timestamp must be in the future"
	case ErrBumpMissing:
		return "missing bump"
	case ErrWrongAssetKind:
		return "incorrect asset kind for this operation"
	case ErrInsufficientVaultBalance:
		return "vault balance lower than expected amount"
	}
	return fmt.Sprintf("unknown program error: %d", uint32(e))
}

// FromTransactionError extracts the program's custom error from a failed
// transaction, if the failure was a custom instruction error in the
// program's code range.
func FromTransactionError(txErr *solana.TransactionError) (ProgramError, bool) {
	if txErr == nil {
		return 0, false
	}

	insErr := txErr.InstructionError()
	if insErr == nil {
		return 0, false
	}

	custom := insErr.CustomError()
	if custom == nil {
		return 0, false
	}

	code := ProgramError(*custom)
	if code < ErrTimeLockNotExpired || code > ErrInsufficientVaultBalance {
		return 0, false
	}
	return code, true
}
