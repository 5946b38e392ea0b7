package engine

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/timelock-wallet/timelock-client/pkg/solana"
)

const (
	defaultEndpoint         = "https://api.devnet.solana.com"
	defaultCommitment       = "confirmed"
	defaultPriorityFee      = uint64(0)
	defaultComputeUnitLimit = uint32(200_000)
	defaultPollInterval     = time.Second
	defaultPollCeiling      = 30 * time.Second
	defaultDecimals         = uint8(9)
	defaultAirdropLamports  = uint64(1_000_000_000)
)

// Config carries the engine's tunables. Every field can be overridden through
// the environment with the TIMELOCK prefix, e.g. TIMELOCK_POLL_INTERVAL=2s.
type Config struct {
	// Endpoint is the JSON RPC endpoint of the target cluster.
	Endpoint string `mapstructure:"endpoint"`

	// Commitment is the level an action waits for: confirmed or finalized.
	Commitment string `mapstructure:"commitment"`

	// PriorityFee is the per compute unit price in micro lamports. Zero
	// omits the instruction.
	PriorityFee uint64 `mapstructure:"priority_fee"`

	// ComputeUnitLimit caps the compute budget. Zero omits the instruction.
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`

	// PollInterval is the delay between confirmation status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PollCeiling bounds the total time spent polling before an action is
	// reported with unknown status.
	PollCeiling time.Duration `mapstructure:"poll_ceiling"`

	// DefaultDecimals is used to render token amounts when the vault
	// balance cannot be fetched.
	DefaultDecimals uint8 `mapstructure:"default_decimals"`

	// AirdropLamports is the amount requested by RequestTestFunds.
	AirdropLamports uint64 `mapstructure:"airdrop_lamports"`
}

// LoadConfig builds a Config from defaults and environment overrides.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("timelock")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("endpoint", defaultEndpoint)
	v.SetDefault("commitment", defaultCommitment)
	v.SetDefault("priority_fee", defaultPriorityFee)
	v.SetDefault("compute_unit_limit", defaultComputeUnitLimit)
	v.SetDefault("poll_interval", defaultPollInterval)
	v.SetDefault("poll_ceiling", defaultPollCeiling)
	v.SetDefault("default_decimals", defaultDecimals)
	v.SetDefault("airdrop_lamports", defaultAirdropLamports)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	switch c.Commitment {
	case "confirmed", "finalized":
	default:
		return errors.Errorf("invalid commitment %q", c.Commitment)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.PollCeiling < c.PollInterval {
		return errors.New("poll_ceiling must be at least poll_interval")
	}
	return nil
}

func (c Config) commitment() solana.Commitment {
	if c.Commitment == "finalized" {
		return solana.CommitmentFinalized
	}
	return solana.CommitmentConfirmed
}
