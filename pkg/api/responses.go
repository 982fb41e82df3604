package api

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
}
