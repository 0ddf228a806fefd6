package game

import "fmt"

// Params are the economic constants of a deployment.
type Params struct {
	UnitPrice       uint64 `json:"unit_price" yaml:"unit_price" env:"UNIT_PRICE"`                   // native units per piece at cycle positions 1..25
	TokenUnitPrice  uint64 `json:"token_unit_price" yaml:"token_unit_price" env:"TOKEN_UNIT_PRICE"` // reward tokens per piece when paying in tokens
	BootstrapTarget uint64 `json:"bootstrap_target" yaml:"bootstrap_target" env:"BOOTSTRAP_TARGET"` // funding target of level 1
	DefaultBudget   uint32 `json:"default_budget" yaml:"default_budget" env:"DEFAULT_BUDGET"`       // work units per normal tick
	TickReward      uint64 `json:"tick_reward" yaml:"tick_reward" env:"TICK_REWARD"`                // tokens per successful normal tick
	BurnReward      uint64 `json:"burn_reward" yaml:"burn_reward" env:"BURN_REWARD"`                // tokens per burned piece
	AffiliateBps    uint64 `json:"affiliate_bps" yaml:"affiliate_bps" env:"AFFILIATE_BPS"`          // referral token reward, basis points of cost
	MaxPurchase     uint64 `json:"max_purchase" yaml:"max_purchase" env:"MAX_PURCHASE"`
	MaxBurn         int    `json:"max_burn" yaml:"max_burn" env:"MAX_BURN"`
	DayOffset       int64  `json:"day_offset_seconds" yaml:"day_offset_seconds" env:"DAY_OFFSET_SECONDS"`
	RNGStallSeconds int64  `json:"rng_stall_seconds" yaml:"rng_stall_seconds" env:"RNG_STALL_SECONDS"`
	LivenessSeconds int64  `json:"liveness_seconds" yaml:"liveness_seconds" env:"LIVENESS_SECONDS"`
	RareSaveRoll    uint64 `json:"rare_save_roll" yaml:"rare_save_roll" env:"RARE_SAVE_ROLL"` // out of 1e6
	RareSavePercent uint64 `json:"rare_save_percent" yaml:"rare_save_percent" env:"RARE_SAVE_PERCENT"`
}

// DefaultParams returns the production economics.
func DefaultParams() Params {
	return Params{
		UnitPrice:       1_000_000,
		TokenUnitPrice:  1_000,
		BootstrapTarget: 50_000_000,
		DefaultBudget:   500,
		TickReward:      100,
		BurnReward:      10,
		AffiliateBps:    500,
		MaxPurchase:     100,
		MaxBurn:         75,
		DayOffset:       0,
		RNGStallSeconds: 6 * 3600,
		LivenessSeconds: 365 * 86400,
		RareSaveRoll:    1000,
		RareSavePercent: 10,
	}
}

// PriceAt is the native price of one piece at level: the base price
// times 1, 2, 3 or 4 by position 1..25, 26..50, 51..75, 76..100 in the
// 100-level cycle.
func (p Params) PriceAt(level uint32) uint64 {
	pos := (level+99)%100 + 1
	switch {
	case pos <= 25:
		return p.UnitPrice
	case pos <= 50:
		return p.UnitPrice * 2
	case pos <= 75:
		return p.UnitPrice * 3
	}
	return p.UnitPrice * 4
}

// Validate rejects parameter sets the engine cannot run with.
func (p Params) Validate() error {
	switch {
	case p.UnitPrice == 0 || p.TokenUnitPrice == 0:
		return fmt.Errorf("game: unit prices must be positive")
	case p.BootstrapTarget == 0:
		return fmt.Errorf("game: bootstrap_target must be positive")
	case p.DefaultBudget == 0:
		return fmt.Errorf("game: default_budget must be positive")
	case p.MaxPurchase == 0 || p.MaxBurn <= 0:
		return fmt.Errorf("game: max_purchase and max_burn must be positive")
	case p.AffiliateBps > 10_000:
		return fmt.Errorf("game: affiliate_bps above 10000")
	case p.RareSaveRoll > 1_000_000 || p.RareSavePercent > 100:
		return fmt.Errorf("game: rare save roll out of range")
	case p.RNGStallSeconds <= 0 || p.LivenessSeconds <= 0:
		return fmt.Errorf("game: stall and liveness windows must be positive")
	}
	return nil
}
