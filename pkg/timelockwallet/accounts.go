package timelockwallet

import (
	"crypto/ed25519"
	"strings"

	"github.com/pkg/errors"

	"github.com/timelock-wallet/timelock-client/pkg/codec"
)

// AssetKind identifies the asset class held by a lock.
type AssetKind uint8

const (
	AssetSol AssetKind = iota
	AssetSpl
)

func (k AssetKind) String() string {
	switch k {
	case AssetSol:
		return "Sol"
	case AssetSpl:
		return "Spl"
	}
	return "unknown"
}

func (k AssetKind) seed() string {
	if k == AssetSpl {
		return SplLockSeed
	}
	return SolLockSeed
}

// ParseAssetKind maps a variant name to an asset class. Matching is case
// insensitive since documents and callers disagree on casing.
func ParseAssetKind(name string) (AssetKind, error) {
	switch strings.ToLower(name) {
	case "sol":
		return AssetSol, nil
	case "spl":
		return AssetSpl, nil
	}
	return 0, errors.Errorf("unknown asset kind %q", name)
}

// LockRecord is the decoded on-chain state of a lock account.
type LockRecord struct {
	Initializer     ed25519.PublicKey
	Amount          uint64
	UnlockTimestamp int64
	Bump            uint8
	Kind            AssetKind

	// Mint is nil for native locks.
	Mint ed25519.PublicKey
}

// UnmarshalLockRecord decodes raw lock account data. The record discriminator
// is validated; trailing padding beyond the declared layout is ignored.
func UnmarshalLockRecord(data []byte) (*LockRecord, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}

	decoded, err := codec.Decode(s, RecordLockAccount, data)
	if err != nil {
		return nil, err
	}

	rec := &LockRecord{}

	if v, ok := decoded.Field("initializer"); ok {
		rec.Initializer, _ = v.Key()
	}
	if v, ok := decoded.Field("amount"); ok {
		rec.Amount, _ = v.Uint64()
	}
	if v, ok := decoded.Field("unlock_timestamp"); ok {
		rec.UnlockTimestamp, _ = v.Int64()
	}
	if v, ok := decoded.Field("bump"); ok {
		bump, _ := v.Uint64()
		rec.Bump = uint8(bump)
	}
	if v, ok := decoded.Field("kind"); ok {
		variant, _ := v.Variant()
		kind, err := ParseAssetKind(variant)
		if err != nil {
			return nil, err
		}
		rec.Kind = kind
	}
	if v, ok := decoded.Field("mint"); ok {
		if inner, present, _ := v.Option(); present {
			rec.Mint, _ = inner.Key()
		}
	}

	return rec, nil
}
