package services

import (
	"math"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg/constant"
)

// getRetryCount reads the retry counter header, defaulting to 0 on first
// delivery. AMQP clients encode small integers differently, so every integer
// width is accepted.
func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch v := headers[constant.HeaderRetryCount].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}

	return 0
}

// getLastError reads the last error kind header, if any.
func getLastError(headers amqp.Table) string {
	if headers == nil {
		return ""
	}

	if v, ok := headers[constant.HeaderLastError].(string); ok {
		return v
	}

	return ""
}

// safeIncrementRetryCount increments the counter, saturating at MaxInt32
// instead of wrapping.
func safeIncrementRetryCount(count int) int32 {
	if count >= math.MaxInt32 {
		return math.MaxInt32
	}

	return int32(count) + 1
}
