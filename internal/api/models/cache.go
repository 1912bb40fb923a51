package models

// CacheConfigRequest is the PUT /api/cache/config body.
type CacheConfigRequest struct {
	DefaultTTLSeconds int `json:"default_ttl_seconds" binding:"required"`
	MaxEntries        int `json:"max_entries"          binding:"required"`
}

// CacheConfigResponse is the GET /api/cache/config payload.
type CacheConfigResponse struct {
	DefaultTTLSeconds int `json:"default_ttl_seconds"`
	MaxEntries        int `json:"max_entries"`
}

// CacheStatsResponse is the GET /api/cache/stats payload.
type CacheStatsResponse struct {
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
