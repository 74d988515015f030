package device

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the Firestore or PostgreSQL implementation.
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[string]map[string]*Registration // user ID -> token value -> registration
	legacy map[string]Token                    // user ID -> legacy token
}

// NewInMemoryRepository creates a new in-memory token repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[string]map[string]*Registration),
		legacy: make(map[string]Token),
	}
}

// SetLegacyToken stores the legacy single token of a user.
func (r *InMemoryRepository) SetLegacyToken(userID string, token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.legacy[userID] = token
}

// ListByUser retrieves the registered tokens of a user ordered by creation time.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string) ([]Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]*Registration, 0, len(r.tokens[userID]))
	for _, reg := range r.tokens[userID] {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].Token.Value < regs[j].Token.Value
		}
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})

	out := make([]Token, 0, len(regs))
	for _, reg := range regs {
		out = append(out, reg.Token)
	}
	return out, nil
}

// LegacyToken retrieves the legacy token of a user.
func (r *InMemoryRepository) LegacyToken(_ context.Context, userID string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.legacy[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Save creates or refreshes a registration.
func (r *InMemoryRepository) Save(_ context.Context, reg *Registration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userTokens, ok := r.tokens[reg.UserID]
	if !ok {
		userTokens = make(map[string]*Registration)
		r.tokens[reg.UserID] = userTokens
	}

	if existing, ok := userTokens[reg.Token.Value]; ok {
		existing.Token.Platform = reg.Token.Platform
		existing.UpdatedAt = reg.UpdatedAt
		return false, nil
	}

	cpy := *reg
	userTokens[reg.Token.Value] = &cpy
	return true, nil
}

// DeleteByValue removes every record holding the token value.
func (r *InMemoryRepository) DeleteByValue(_ context.Context, value string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, userTokens := range r.tokens {
		if _, ok := userTokens[value]; ok {
			delete(userTokens, value)
			removed++
		}
		if len(userTokens) == 0 {
			delete(r.tokens, userID)
		}
	}
	for userID, t := range r.legacy {
		if t.Value == value {
			delete(r.legacy, userID)
			removed++
		}
	}
	return removed, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
