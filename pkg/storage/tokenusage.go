package storage

import (
	"context"
	"time"
)

// UsageWindow is the §4.F token accounting result for a trailing window
// ending at the time the query ran.
type UsageWindow struct {
	WindowStart time.Time
	WindowEnd   time.Time

	InputTokens         int64
	OutputTokens        int64
	TotalTokens         int64
	RequestCount        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// UsageFilter narrows a WindowUsage call.
type UsageFilter struct {
	AccountID     string
	WindowMinutes int
	Domain        string
	Model         string
}

// WindowUsage answers "how many tokens in the last N minutes" with a
// single indexed range scan over api_requests, aggregated server-side.
// Only inference-typed requests count toward the rolling window.
func (s *Store) WindowUsage(ctx context.Context, f UsageFilter) (*UsageWindow, error) {
	defer s.logSlow("window_usage", time.Now())

	end := time.Now()
	start := end.Add(-time.Duration(f.WindowMinutes) * time.Minute)

	var u UsageWindow
	err := s.pool.QueryRow(ctx, `
		SELECT
			coalesce(sum(input_tokens), 0),
			coalesce(sum(output_tokens), 0),
			coalesce(sum(total_tokens), 0),
			count(*),
			coalesce(sum(cache_creation_tokens), 0),
			coalesce(sum(cache_read_tokens), 0)
		FROM api_requests
		WHERE account_id = $1
		  AND request_type = 'inference'
		  AND timestamp >= $2
		  AND ($3 = '' OR domain = $3)
		  AND ($4 = '' OR upstream_model = $4)
	`, f.AccountID, start, f.Domain, f.Model).Scan(
		&u.InputTokens, &u.OutputTokens, &u.TotalTokens, &u.RequestCount,
		&u.CacheCreationTokens, &u.CacheReadTokens,
	)
	if err != nil {
		return nil, err
	}

	u.WindowStart = start
	u.WindowEnd = end
	return &u, nil
}

// DomainStats is the all-time token aggregate for one domain, returned by
// the dashboard's GET /token-stats endpoint.
type DomainStats struct {
	Domain              string
	InputTokens         int64
	OutputTokens        int64
	TotalTokens         int64
	RequestCount        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// DomainTokenStats aggregates token counters across every inference request
// for domain, or across every domain when domain is empty.
func (s *Store) DomainTokenStats(ctx context.Context, domain string) ([]*DomainStats, error) {
	defer s.logSlow("domain_token_stats", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT
			domain,
			coalesce(sum(input_tokens), 0),
			coalesce(sum(output_tokens), 0),
			coalesce(sum(total_tokens), 0),
			count(*),
			coalesce(sum(cache_creation_tokens), 0),
			coalesce(sum(cache_read_tokens), 0)
		FROM api_requests
		WHERE request_type = 'inference'
		  AND ($1 = '' OR domain = $1)
		GROUP BY domain
		ORDER BY domain ASC
	`, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DomainStats
	for rows.Next() {
		var d DomainStats
		if err := rows.Scan(&d.Domain, &d.InputTokens, &d.OutputTokens, &d.TotalTokens, &d.RequestCount, &d.CacheCreationTokens, &d.CacheReadTokens); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// DailyUsagePoint is one day's worth of aggregated usage.
type DailyUsagePoint struct {
	Day          time.Time
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	RequestCount int64
}

// DailyUsage returns a per-day aggregation over the trailing `days` days.
func (s *Store) DailyUsage(ctx context.Context, accountID string, days int, domain, model string) ([]*DailyUsagePoint, error) {
	defer s.logSlow("daily_usage", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT
			date_trunc('day', timestamp) AS day,
			coalesce(sum(input_tokens), 0),
			coalesce(sum(output_tokens), 0),
			coalesce(sum(total_tokens), 0),
			count(*)
		FROM api_requests
		WHERE account_id = $1
		  AND request_type = 'inference'
		  AND timestamp >= now() - ($2::text || ' days')::interval
		  AND ($3 = '' OR domain = $3)
		  AND ($4 = '' OR upstream_model = $4)
		GROUP BY day
		ORDER BY day ASC
	`, accountID, days, domain, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DailyUsagePoint
	for rows.Next() {
		var p DailyUsagePoint
		if err := rows.Scan(&p.Day, &p.InputTokens, &p.OutputTokens, &p.TotalTokens, &p.RequestCount); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
