package models

import (
	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
)

// TicketMetricsCacheKey holds the cached ticket metrics report.
const TicketMetricsCacheKey = "reports:ticket-metrics"

type RedisCleaner interface {
	RemoveAllRedis() error
}

var removeRedisKeys = config.RemoveRedisKey

// tickets feed the metrics report; projects add and delete tickets
func (obj Ticket) RemoveAllRedis() error {
	return removeRedisKeys(TicketMetricsCacheKey)
}

func (obj Project) RemoveAllRedis() error {
	return removeRedisKeys(TicketMetricsCacheKey)
}

// clearRedis runs after a committed write. The write stands when Redis
// fails; the cached entry then expires on its TTL.
func clearRedis[T RedisCleaner](obj T, funcName string) {
	if err := obj.RemoveAllRedis(); err != nil {
		config.LogError(config.GetLogger(), "Models", funcName, "clear report cache", nil, err)
	}
}
