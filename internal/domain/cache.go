package domain

import (
	"fmt"
	"time"
)

// CacheEntry is one persisted query/answer pair. Entries are immutable and
// ordered by ID, which follows insertion order.
type CacheEntry struct {
	ID           int64
	Query        string
	Vector       []float32
	Answer       string
	Sources      []string
	Verification *VerificationResult
	CreatedAt    time.Time
}

// CacheHit is a lookup result together with its similarity score.
type CacheHit struct {
	Entry      CacheEntry
	Similarity float64
}

// CacheStats summarises the cache contents.
type CacheStats struct {
	Entries int64 `json:"entries"`
}

// ValidateCacheEntry validates an entry before it is written
func ValidateCacheEntry(e *CacheEntry) error {
	if e == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	if e.Query == "" {
		return fmt.Errorf("cache entry Query is required")
	}

	if len(e.Vector) == 0 {
		return fmt.Errorf("cache entry Vector is required")
	}

	if e.Answer == "" {
		return fmt.Errorf("cache entry Answer is required")
	}

	return nil
}
