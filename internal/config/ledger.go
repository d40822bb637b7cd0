package config

import (
	"fmt"

	"github.com/coldvault/coldvault-agent/internal/cipher"
)

// ConsumeNonces reserves a contiguous range of n nonce counters for exclusive
// use by the caller and returns the first counter in that range, following
// the algorithm in §4.1: the ledger's in-memory counter always advances
// first; if that advance would cross the persisted high-water mark, the mark
// is grown in fixed NoncePreallocAmount increments and flushed to disk
// *before* the new start value is returned. A persist failure is fatal: the
// caller must abort the run rather than risk handing out a nonce range that
// was never durably reserved.
func (c *Config) ConsumeNonces(n uint64) (cipher.Uint128, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.nonceCtr
	if n == 0 {
		return start, nil
	}
	c.nonceCtr = c.nonceCtr.Add(n)

	grew := false
	for c.nonceCtr.Cmp(c.NonceAlloc) > 0 {
		c.NonceAlloc = c.NonceAlloc.Add(NoncePreallocAmount)
		grew = true
	}

	if grew {
		if err := c.Save(""); err != nil {
			return cipher.Uint128{}, fmt.Errorf("nonce ledger: persist growth: %w", err)
		}
	}

	return start, nil
}
