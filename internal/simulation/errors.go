package simulation

import "errors"

var (
	// ErrSimulationTimeout is returned when a simulation does not finish
	// within the configured timeout.
	ErrSimulationTimeout = errors.New("simulation did not finish in time")

	// ErrSimulationCrashed is returned when the simulation status becomes
	// "crashed".
	ErrSimulationCrashed = errors.New("simulation crashed")
)
