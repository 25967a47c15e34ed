package services

import (
	"sync"
	"time"

	"splitbase-backend/models"
)

// BalanceCache is a per-process TTL cache of computed group balances. Reads
// and writes are mutex-guarded; no blocking work happens under the lock, so a
// miss means the caller recomputes outside it.
type BalanceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]balanceEntry
}

type balanceEntry struct {
	balances  *models.GroupBalances
	expiresAt time.Time
}

func NewBalanceCache(ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		ttl:     ttl,
		entries: make(map[string]balanceEntry),
	}
}

func (c *BalanceCache) Get(groupID string) (*models.GroupBalances, bool) {
	c.mu.RLock()
	entry, ok := c.entries[groupID]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.balances, true
}

func (c *BalanceCache) Put(groupID string, balances *models.GroupBalances) {
	c.mu.Lock()
	c.entries[groupID] = balanceEntry{
		balances:  balances,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate drops the group's entry. Called on expense mutations, settlement
// confirmations, membership changes and currency updates.
func (c *BalanceCache) Invalidate(groupID string) {
	c.mu.Lock()
	delete(c.entries, groupID)
	c.mu.Unlock()
}
