package config

import (
	"github.com/tolelom/purgegame/core"
)

// genesisCounter marks that the alloc has been credited.
const genesisCounter = "genesis.applied"

// ApplyGenesis credits the configured alloc on a fresh state and commits.
// It reports whether anything was applied; later starts are no-ops.
func ApplyGenesis(cfg *Config, state core.State) (bool, error) {
	done, err := state.GetCounter(genesisCounter)
	if err != nil {
		return false, err
	}
	if done != 0 {
		return false, nil
	}
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc, err := state.GetAccount(pubkeyHex)
		if err != nil {
			return false, err
		}
		acc.Balance += balance
		if err := state.SetAccount(acc); err != nil {
			return false, err
		}
	}
	if err := state.SetCounter(genesisCounter, 1); err != nil {
		return false, err
	}
	if err := state.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
