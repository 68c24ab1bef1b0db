package engine

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// Tier bundles the difficulty parameters for one level 1..5. Ghost speed is
// a multiplier over the base tile rate; power duration shrinks as tiers
// climb. The advisor flag marks tiers whose ghosts accept coordination hints
// from the overlay; the engine itself never reads it.
type Tier struct {
	Level          int
	GhostSpeed     float64
	ChaseSeconds   int
	ScatterSeconds int
	PowerSeconds   int
	Advisor        bool
}

var tierTable = [5]Tier{
	{Level: 1, GhostSpeed: 0.75, ChaseSeconds: 20, ScatterSeconds: 7, PowerSeconds: 8},
	{Level: 2, GhostSpeed: 0.85, ChaseSeconds: 20, ScatterSeconds: 7, PowerSeconds: 6},
	{Level: 3, GhostSpeed: 0.95, ChaseSeconds: 25, ScatterSeconds: 5, PowerSeconds: 4},
	{Level: 4, GhostSpeed: 1.00, ChaseSeconds: 25, ScatterSeconds: 5, PowerSeconds: 2, Advisor: true},
	{Level: 5, GhostSpeed: 1.05, ChaseSeconds: 30, ScatterSeconds: 3, PowerSeconds: 1, Advisor: true},
}

const (
	MinTier = 1
	MaxTier = 5
)

// TierConfig returns the parameters for a difficulty level.
func TierConfig(level int) (Tier, error) {
	if level < MinTier || level > MaxTier {
		return Tier{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "tier %d out of range [%d,%d]", level, MinTier, MaxTier)
	}
	return tierTable[level-1], nil
}
