package services

import (
	"math"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/varpsim/varp/pkg/constant"
)

func TestGetRetryCount_ReturnsZeroForFirstDelivery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, getRetryCount(amqp.Table{}))
	assert.Equal(t, 0, getRetryCount(nil))
}

func TestGetRetryCount_ReadsStoredValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, getRetryCount(amqp.Table{constant.HeaderRetryCount: int32(3)}))
}

func TestGetRetryCount_HandlesIntegerWidths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, getRetryCount(amqp.Table{constant.HeaderRetryCount: int64(5)}))
	assert.Equal(t, 2, getRetryCount(amqp.Table{constant.HeaderRetryCount: int(2)}))
	assert.Equal(t, 1, getRetryCount(amqp.Table{constant.HeaderRetryCount: int8(1)}))
	assert.Equal(t, 7, getRetryCount(amqp.Table{constant.HeaderRetryCount: int16(7)}))
}

func TestGetRetryCount_IgnoresNonInteger(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, getRetryCount(amqp.Table{constant.HeaderRetryCount: "3"}))
}

func TestGetLastError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", getLastError(nil))
	assert.Equal(t, "", getLastError(amqp.Table{}))
	assert.Equal(t, "TimeoutError", getLastError(amqp.Table{constant.HeaderLastError: "TimeoutError"}))
}

func TestSafeIncrementRetryCount_IncrementsCorrectly(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(1), safeIncrementRetryCount(0))
	assert.Equal(t, int32(3), safeIncrementRetryCount(2))
}

func TestSafeIncrementRetryCount_HandlesOverflow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int32(math.MaxInt32), safeIncrementRetryCount(math.MaxInt32))
}
