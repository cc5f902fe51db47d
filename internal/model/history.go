package model

import "time"

// HistoryEntry is one persisted reconciliation.
type HistoryEntry struct {
	ID              string                `json:"id"`
	URL             string                `json:"url"`
	CacheKey        string                `json:"cacheKey"`
	SourceTier      string                `json:"sourceTier"`
	ResolvedAddress string                `json:"resolvedAddress"`
	Score           int                   `json:"score"`
	Record          *MergedPropertyRecord `json:"record"`
	CreatedAt       time.Time             `json:"createdAt"`
}
