package reports

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"github.com/sirupsen/logrus"
)

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	fields := logrus.Fields{"report": name, "ms": d.Milliseconds()}
	for k, v := range extra {
		fields[k] = v
	}
	config.LogWarning(config.LoggerFromContext(ctx), "Reports", name, "slow report", fields)
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(key, obj, ttl)
}

// CachedTicketMetrics serves metrics from Redis when ENABLE_REPORT_CACHE is
// set. Cache failures fall through to a fresh calculation.
func CachedTicketMetrics(ctx context.Context, clients models.ClientDirectory) (*TicketMetrics, error) {
	started := time.Now()
	if reportCacheEnabled() {
		var cached TicketMetrics
		hit, err := cacheGet(models.TicketMetricsCacheKey, &cached)
		if err != nil {
			config.LogError(config.GetLogger(), "Reports", "CachedTicketMetrics", "read cache", models.TicketMetricsCacheKey, err)
		} else if hit {
			return &cached, nil
		}
	}

	metrics, err := CalculateTicketMetrics(ctx, clients)
	if err != nil {
		return nil, err
	}
	logSlowReport(ctx, "CalculateTicketMetrics", started, logrus.Fields{"tickets": metrics.Totals.Tickets})

	if reportCacheEnabled() {
		if err := cacheSet(models.TicketMetricsCacheKey, metrics, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "Reports", "CachedTicketMetrics", "write cache", models.TicketMetricsCacheKey, err)
		}
	}
	return metrics, nil
}

// InvalidateReportCache drops cached report results. Ticket writes in
// models already do this; tools that change tickets in bulk call it directly.
func InvalidateReportCache() error {
	return config.RemoveRedisKey(models.TicketMetricsCacheKey)
}
