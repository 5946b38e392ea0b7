package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.PollCeiling)
	assert.EqualValues(t, 9, cfg.DefaultDecimals)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TIMELOCK_POLL_INTERVAL", "250ms")
	t.Setenv("TIMELOCK_COMMITMENT", "finalized")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, solana.CommitmentFinalized, cfg.commitment())
}

func TestConfig_Validate(t *testing.T) {
	base := testConfig()

	cfg := base
	cfg.Endpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.Commitment = "processed"
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.PollInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.PollCeiling = cfg.PollInterval / 2
	assert.Error(t, cfg.Validate())

	assert.NoError(t, base.Validate())
}
