package mrabbitmq_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg/constant"
	"github.com/varpsim/varp/pkg/mrabbitmq"
)

// integrationClient connects to a live broker, or skips the test when none is
// configured. Set RABBITMQ_INTEGRATION=1 (plus the usual RABBITMQ_* vars) to
// run it.
func integrationClient(t *testing.T) *mrabbitmq.Client {
	t.Helper()

	if os.Getenv("RABBITMQ_INTEGRATION") == "" {
		t.Skip("RABBITMQ_INTEGRATION not set, skipping live broker test")
	}

	client := mrabbitmq.NewClient(mrabbitmq.Config{
		Host:            os.Getenv("RABBITMQ_HOST"),
		Port:            os.Getenv("RABBITMQ_PORT"),
		User:            os.Getenv("RABBITMQ_USER"),
		Pass:            os.Getenv("RABBITMQ_PASS"),
		VHost:           os.Getenv("RABBITMQ_VHOST"),
		ConnectAttempts: 1,
		RetryDelay:      time.Second,
	}, nil)

	require.NoError(t, client.Connect())

	t.Cleanup(func() {
		_ = client.Disconnect()
	})

	return client
}

func TestIntegration_TopologyAndRoundtrip(t *testing.T) {
	client := integrationClient(t)

	require.NoError(t, client.DeclareTopology())

	// Declaring twice is a no-op.
	require.NoError(t, client.DeclareTopology())

	_, err := client.Purge(constant.QueueEscenarios)
	require.NoError(t, err)

	message := map[string]any{"escenario_id": 1, "valores": map[string]float64{"x": 1.5}}

	body, err := json.Marshal(message)
	require.NoError(t, err)

	require.NoError(t, client.Publish(context.Background(), constant.QueueEscenarios, body, true, nil))

	depth, err := client.QueueDepth(constant.QueueEscenarios)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	d, ok, err := client.GetOne(constant.QueueEscenarios, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(body), string(d.Body))

	require.NoError(t, d.Ack(false))

	depth, err = client.QueueDepth(constant.QueueEscenarios)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}
