// Package timelockwallet is the client for the time-locked custody program.
// It binds the normalized interface schema to the program's deployed address,
// derives the program's lock and vault accounts, and maps its custom error
// codes.
package timelockwallet

import (
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58/base58"

	"github.com/timelock-wallet/timelock-client/pkg/idl"
)

// ProgramID is the deployed address of the time-locked custody program.
//
// Current address: 8LQG6U5AQKe9t97ogxMtggbr24QgUKNFz22qvVPzBYYe
var ProgramID ed25519.PublicKey

func init() {
	addr, err := base58.Decode("8LQG6U5AQKe9t97ogxMtggbr24QgUKNFz22qvVPzBYYe")
	if err != nil {
		panic(err)
	}
	ProgramID = addr
}

// Lock account derivation seed prefixes. Each asset class has its own prefix,
// so a party can hold one native lock and one token lock simultaneously.
const (
	SolLockSeed = "time-lock-sol"
	SplLockSeed = "time-lock-spl"
)

// Canonical operation names, as they appear in the normalized schema.
const (
	OpInitializeLockSol = "initialize_lock_sol"
	OpFundSolLock       = "fund_sol_lock"
	OpWithdrawSol       = "withdraw_sol"
	OpInitializeLockSpl = "initialize_lock_spl"
	OpWithdrawSpl       = "withdraw_spl"
)

// Declared type names.
const (
	RecordLockAccount = "TimeLockAccount"
	EnumAssetKind     = "AssetKind"
)

var (
	schemaOnce sync.Once
	schema     *idl.Schema
	schemaErr  error
)

// Schema returns the normalized program schema. The embedded document is
// parsed once; a parse failure is returned on every call.
func Schema() (*idl.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = idl.Parse([]byte(idlSource))
	})
	return schema, schemaErr
}

// idlSource is the interface document emitted for the deployed program. It
// predates the current generator conventions: account flags use the isMut and
// isSigner spelling, enum variants are bare strings, and derivation metadata
// is embedded on derived accounts. Parse normalizes all of it.
const idlSource = `{
  "name": "timelock_wallet",
  "instructions": [
    {
      "name": "initializeLockSol",
      "accounts": [
        {"name": "initializer", "isMut": true, "isSigner": true},
        {
          "name": "lockAccount",
          "isMut": true,
          "isSigner": false,
          "pda": {"seeds": [{"kind": "const", "value": "time-lock-sol"}, {"kind": "account", "path": "initializer"}]}
        },
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": [
        {"name": "amountLamports", "type": "u64"},
        {"name": "unlockTimestamp", "type": "i64"}
      ]
    },
    {
      "name": "fundSolLock",
      "accounts": [
        {"name": "initializer", "isMut": true, "isSigner": true},
        {"name": "lockAccount", "isMut": true, "isSigner": false},
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": [
        {"name": "amountLamports", "type": "u64"}
      ]
    },
    {
      "name": "withdrawSol",
      "accounts": [
        {"name": "initializer", "isMut": true, "isSigner": true},
        {"name": "lockAccount", "isMut": true, "isSigner": false},
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": []
    },
    {
      "name": "initializeLockSpl",
      "accounts": [
        {"name": "initializer", "isMut": true, "isSigner": true},
        {
          "name": "lockAccount",
          "isMut": true,
          "isSigner": false,
          "pda": {"seeds": [{"kind": "const", "value": "time-lock-spl"}, {"kind": "account", "path": "initializer"}]}
        },
        {"name": "mint", "isMut": false, "isSigner": false},
        {"name": "userAta", "isMut": true, "isSigner": false},
        {"name": "vaultAta", "isMut": true, "isSigner": false},
        {"name": "tokenProgram", "isMut": false, "isSigner": false},
        {"name": "associatedTokenProgram", "isMut": false, "isSigner": false},
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": [
        {"name": "amount", "type": "u64"},
        {"name": "unlockTimestamp", "type": "i64"}
      ]
    },
    {
      "name": "withdrawSpl",
      "accounts": [
        {"name": "initializer", "isMut": true, "isSigner": true},
        {"name": "lockAccount", "isMut": true, "isSigner": false},
        {"name": "mint", "isMut": false, "isSigner": false},
        {"name": "userAta", "isMut": true, "isSigner": false},
        {"name": "vaultAta", "isMut": true, "isSigner": false},
        {"name": "tokenProgram", "isMut": false, "isSigner": false}
      ],
      "args": []
    }
  ],
  "accounts": [
    {
      "name": "TimeLockAccount",
      "type": {
        "kind": "struct",
        "fields": [
          {"name": "initializer", "type": "publicKey"},
          {"name": "amount", "type": "u64"},
          {"name": "unlockTimestamp", "type": "i64"},
          {"name": "bump", "type": "u8"},
          {"name": "kind", "type": {"defined": "AssetKind"}},
          {"name": "mint", "type": {"option": "publicKey"}}
        ]
      }
    }
  ],
  "types": [
    {
      "name": "AssetKind",
      "type": {
        "kind": "enum",
        "variants": ["Sol", "Spl"]
      }
    }
  ]
}`
