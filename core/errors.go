package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Failure taxonomy for game operations. Handlers wrap one of these so callers
// can branch with errors.Is. None of them is retried internally: the caller
// must wait for a state change (time passing, randomness arriving) first.
var (
	// ErrGuard is a generic precondition failure: wrong amount, wrong phase,
	// disallowed caller pattern.
	ErrGuard = errors.New("guard failed")

	// ErrNotReady means the relevant day or phase boundary has not been
	// reached yet, or randomness is still in flight.
	ErrNotReady = errors.New("not ready")

	// ErrEngagement means the caller has not met the participation bar
	// required to drive this step.
	ErrEngagement = errors.New("engagement threshold not met")

	// ErrShutdown is returned for every mutating operation except claims
	// once the liveness valve has terminated the game.
	ErrShutdown = errors.New("game shut down")
)
