// Package question holds the in-memory question bank and hands out
// random questions by difficulty level.
package question

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"

	"github.com/samber/lo"
	"quizroom/pkg/interfaces"
	"quizroom/pkg/types"
)

// Provider serves uniform random picks from per-level question pools.
// The pools are loaded once at startup and never mutated afterwards, so
// reads need no locking.
type Provider struct {
	levels map[string][]*types.Question
}

// NewProvider wraps an already-loaded bank. Levels with empty pools are
// dropped so PickRandom has a single miss path.
func NewProvider(levels map[string][]*types.Question) *Provider {
	pools := make(map[string][]*types.Question, len(levels))
	for level, pool := range levels {
		if len(pool) > 0 {
			pools[level] = pool
		}
	}
	return &Provider{levels: pools}
}

// Load reads the question bank from the store. The server refuses to
// start without a bank, mirroring the fatal credential path: an empty
// bank is allowed (every pick degrades to the sentinel), a failed read
// is not.
func Load(ctx context.Context, store interfaces.ChatStore) (*Provider, error) {
	bank, err := store.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank: %w", err)
	}

	provider := NewProvider(bank)
	for _, level := range provider.Levels() {
		log.Printf("question bank: level=%s questions=%d", level, len(provider.levels[level]))
	}
	if len(provider.levels) == 0 {
		log.Printf("question bank is empty; all question requests will degrade")
	}

	return provider, nil
}

// PickRandom returns a uniformly random question for the level, or
// (nil, false) when the level is unknown or empty. Callers surface the
// miss to the requester instead of failing the request.
func (p *Provider) PickRandom(level string) (*types.Question, bool) {
	pool, ok := p.levels[level]
	if !ok {
		return nil, false
	}
	return pool[rand.Intn(len(pool))], true
}

// Levels returns the known level names, sorted for stable logs.
func (p *Provider) Levels() []string {
	levels := lo.Keys(p.levels)
	sort.Strings(levels)
	return levels
}
