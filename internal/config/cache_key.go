package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the key of the live answer ledger hash for a
// session. Fields are question ids, values are JSON answer entries.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionMetaKey returns the key of the cached session header (status,
// deadline) used by the hot read path.
func (r *CacheKeyStruct) SessionMetaKey(sessionID string) string {
	return fmt.Sprintf("session:%s:meta", sessionID)
}

// SessionResultKey returns the key of the cached terminal GradeResult.
func (r *CacheKeyStruct) SessionResultKey(sessionID string) string {
	return fmt.Sprintf("session:%s:result", sessionID)
}

// ScopeStatsKey returns the key of the cached pool stats for a scope.
func (r *CacheKeyStruct) ScopeStatsKey(scope string) string {
	return fmt.Sprintf("pool:%s:stats", scope)
}

var CacheKey = NewCacheKeyStruct()
