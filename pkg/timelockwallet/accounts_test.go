package timelockwallet

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelock-wallet/timelock-client/pkg/codec"
)

func lockRecordBytes(t *testing.T, kind AssetKind, mint ed25519.PublicKey) []byte {
	data := make([]byte, 8+32+8+8+1+1+33)

	disc := sha256.Sum256([]byte("account:TimeLockAccount"))
	copy(data, disc[:8])

	for i := 0; i < 32; i++ {
		data[8+i] = byte(i)
	}
	// amount = 1_500_000
	data[40] = 0x60
	data[41] = 0xe3
	data[42] = 0x16
	// unlockTimestamp = 1_700_000_000
	data[48] = 0x00
	data[49] = 0xf1
	data[50] = 0x53
	data[51] = 0x65
	// bump
	data[56] = 253
	data[57] = byte(kind)

	if len(mint) > 0 {
		data[58] = 1
		copy(data[59:], mint)
	}

	return data
}

func TestUnmarshalLockRecord_Native(t *testing.T) {
	rec, err := UnmarshalLockRecord(lockRecordBytes(t, AssetSol, nil))
	require.NoError(t, err)

	assert.EqualValues(t, 0, rec.Initializer[0])
	assert.EqualValues(t, 31, rec.Initializer[31])
	assert.EqualValues(t, 1_500_000, rec.Amount)
	assert.EqualValues(t, 1_700_000_000, rec.UnlockTimestamp)
	assert.EqualValues(t, 253, rec.Bump)
	assert.Equal(t, AssetSol, rec.Kind)
	assert.Nil(t, rec.Mint)
}

func TestUnmarshalLockRecord_Token(t *testing.T) {
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	rec, err := UnmarshalLockRecord(lockRecordBytes(t, AssetSpl, mint))
	require.NoError(t, err)

	assert.Equal(t, AssetSpl, rec.Kind)
	assert.EqualValues(t, mint, rec.Mint)
}

func TestUnmarshalLockRecord_TrailingPadding(t *testing.T) {
	data := append(lockRecordBytes(t, AssetSol, nil), make([]byte, 32)...)

	rec, err := UnmarshalLockRecord(data)
	require.NoError(t, err)
	assert.Equal(t, AssetSol, rec.Kind)
}

func TestUnmarshalLockRecord_BadDiscriminator(t *testing.T) {
	data := lockRecordBytes(t, AssetSol, nil)
	data[3] ^= 0x01

	_, err := UnmarshalLockRecord(data)
	require.Error(t, err)

	var decErr *codec.DecodingError
	assert.ErrorAs(t, err, &decErr)
}

func TestUnmarshalLockRecord_Truncated(t *testing.T) {
	data := lockRecordBytes(t, AssetSol, nil)

	_, err := UnmarshalLockRecord(data[:20])
	require.Error(t, err)
}

func TestParseAssetKind(t *testing.T) {
	for input, expected := range map[string]AssetKind{
		"Sol": AssetSol,
		"sol": AssetSol,
		"SPL": AssetSpl,
		"Spl": AssetSpl,
	} {
		kind, err := ParseAssetKind(input)
		require.NoError(t, err)
		assert.Equal(t, expected, kind)
	}

	_, err := ParseAssetKind("Wrapped")
	assert.Error(t, err)
}
