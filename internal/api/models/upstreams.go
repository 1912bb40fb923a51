package models

// UpstreamRequest is the POST/PUT body for an upstream server.
type UpstreamRequest struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address" binding:"required"`
	Protocol string `json:"protocol" binding:"required"` // udp|dot|doh|doq
	Weight   uint32 `json:"weight"`
	Enabled  bool   `json:"enabled"`
}

// UpstreamResponse mirrors a configured upstream server.
type UpstreamResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Protocol string `json:"protocol"`
	Weight   uint32 `json:"weight"`
	Enabled  bool   `json:"enabled"`
}

// UpstreamStatsResponse mirrors one upstream's live health/latency counters.
type UpstreamStatsResponse struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	Address             string  `json:"address"`
	Healthy             bool    `json:"healthy"`
	Queries             uint64  `json:"queries"`
	Failures            uint64  `json:"failures"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"`
	AvgResponseTimeMs   uint64  `json:"avg_response_time_ms"`
	LastCheckedUnix     int64   `json:"last_checked_unix"`
}

// StrategyRequest is the PUT /api/strategy body.
type StrategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

// StrategyResponse is the GET /api/strategy payload.
type StrategyResponse struct {
	Strategy string `json:"strategy"`
}
