package maze

import (
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"golang.org/x/sync/singleflight"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

type cacheKey struct {
	variant Variant
	seed    int64
}

// Cache memoizes generated boards. Boards are immutable after generation, so
// callers share the returned pointer; per-match pellet state lives in the
// engine, not here.
type Cache struct {
	mu     sync.Mutex
	boards map[cacheKey]*Maze
	group  singleflight.Group
}

func NewCache() *Cache {
	return &Cache{boards: make(map[cacheKey]*Maze)}
}

// Get returns the board for a variant and seed, generating it on first use.
// Concurrent callers for the same key share one generation.
func (c *Cache) Get(variant Variant, seed int64) (*Maze, error) {
	key := cacheKey{variant: variant, seed: seed}

	c.mu.Lock()
	if m, ok := c.boards[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%s/%d", variant, seed), func() (any, error) {
		m, err := Build(variant, seed)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.boards[key] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Maze), nil
}

// Build constructs a board without caching. Template variants ignore the
// seed for layout but record it for provenance.
func Build(variant Variant, seed int64) (*Maze, error) {
	switch variant {
	case VariantClassic, VariantLabyrinth, VariantSpeedway, VariantFortress:
		m := fromTemplate(variant, templates[variant])
		m.seed = seed
		return m, nil
	case VariantRandom:
		return generate(seed), nil
	default:
		return nil, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "unknown maze variant %q", variant)
	}
}
