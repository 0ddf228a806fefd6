// Package keeper is the node's single writer. It executes transactions one
// at a time, commits state after each success and drives the round engine
// on a cron schedule with its own signing key.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/metrics"
	"github.com/tolelom/purgegame/vm"
	"github.com/tolelom/purgegame/wallet"
)

// Options tune the advance loop.
type Options struct {
	Schedule  string // cron spec, e.g. "@every 15s"
	Budget    uint32 // budget passed to each keeper tick
	MaxPerRun int    // ticks per scheduled run before yielding
}

// Keeper serialises every state change of the node.
type Keeper struct {
	mu      sync.Mutex
	state   core.State
	exec    *vm.Executor
	wallet  *wallet.Wallet
	metrics *metrics.Collector
	opts    Options
	log     *logrus.Entry
}

// New creates a Keeper. m may be nil.
func New(state core.State, exec *vm.Executor, w *wallet.Wallet, m *metrics.Collector, opts Options) *Keeper {
	if opts.MaxPerRun <= 0 {
		opts.MaxPerRun = 64
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 15s"
	}
	return &Keeper{
		state:   state,
		exec:    exec,
		wallet:  w,
		metrics: m,
		opts:    opts,
		log:     logrus.WithField("component", "keeper"),
	}
}

// Address is the keeper's player address.
func (k *Keeper) Address() string { return k.wallet.PubKey() }

// Submit executes tx and commits the state if it succeeds.
func (k *Keeper) Submit(tx *core.Transaction) (*vm.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.submitLocked(tx)
}

func (k *Keeper) submitLocked(tx *core.Transaction) (*vm.Receipt, error) {
	r, err := k.exec.ExecuteTx(tx)
	if k.metrics != nil {
		k.metrics.ObserveTx(tx.Type, err)
	}
	if err != nil {
		return nil, err
	}
	if err := k.state.Commit(); err != nil {
		// The buffer still holds the executed tx; the node cannot continue
		// safely without persisting it.
		k.log.WithError(err).WithField("tx", tx.ID).Fatal("state commit failed")
	}
	k.observe()
	return r, nil
}

// View runs fn against a read-only engine while holding the writer lock.
func (k *Keeper) View(fn func(g *game.Game) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return fn(k.exec.Game())
}

// Advance signs and executes one tick with the keeper's key.
func (k *Keeper) Advance() (*game.TickResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	acc, err := k.state.GetAccount(k.wallet.PubKey())
	if err != nil {
		return nil, err
	}
	tx, err := k.wallet.Advance(k.exec.ChainID(), k.opts.Budget, acc.Nonce)
	if err != nil {
		return nil, err
	}
	r, err := k.submitLocked(tx)
	if err != nil {
		return nil, err
	}
	res, ok := r.Result.(*game.TickResult)
	if !ok {
		return nil, fmt.Errorf("advance returned %T", r.Result)
	}
	return res, nil
}

// RunOnce ticks until the engine reports nothing to do or MaxPerRun ticks
// have run. It returns the number of successful ticks.
func (k *Keeper) RunOnce() int {
	n := 0
	for n < k.opts.MaxPerRun {
		res, err := k.Advance()
		switch {
		case err == nil:
			n++
			k.log.WithFields(logrus.Fields{
				"action": res.Action,
				"level":  res.Level,
				"phase":  res.Phase.String(),
			}).Debug("tick")
		case errors.Is(err, core.ErrNotReady):
			return n
		case errors.Is(err, core.ErrShutdown):
			k.log.Warn("game shut down; advance loop idle")
			return n
		default:
			k.log.WithError(err).Warn("advance failed")
			return n
		}
	}
	return n
}

// Run schedules RunOnce and blocks until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(k.opts.Schedule, func() { k.RunOnce() }); err != nil {
		return fmt.Errorf("keeper schedule %q: %w", k.opts.Schedule, err)
	}
	k.log.WithField("schedule", k.opts.Schedule).Info("advance loop started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	k.log.Info("advance loop stopped")
	return nil
}

func (k *Keeper) observe() {
	if k.metrics == nil {
		return
	}
	if st, err := k.exec.Game().Status(); err == nil {
		k.metrics.ObserveStatus(st)
	}
}
