package bounce

import "github.com/google/uuid"

// NewSimulationID returns a random simulation identifier.
func NewSimulationID() SimulationID {
	return SimulationID(uuid.NewString())
}
