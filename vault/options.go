package vault

import (
	"fmt"

	"github.com/bitfsorg/poolvault-go/config"
	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
)

// OptionsFromConfig fills the ledger and policy settings of Options from an
// operator configuration. Collaborators must still be set by the caller.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return Options{}, err
	}
	rate, err := cfg.FeeRateWAD()
	if err != nil {
		return Options{}, err
	}
	remainder, err := revshare.ParseRemainderPolicy(cfg.Remainder)
	if err != nil {
		return Options{}, fmt.Errorf("vault: %w", err)
	}
	fallback, err := liquidity.ParsePolicy(cfg.Fallback)
	if err != nil {
		return Options{}, fmt.Errorf("vault: %w", err)
	}
	return Options{
		DataDir:        cfg.DataDir,
		FeeRate:        rate,
		Remainder:      remainder,
		Fallback:       fallback,
		RecentRequests: cfg.RecentRequests,
	}, nil
}
