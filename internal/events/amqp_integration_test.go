//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestAMQPPublisher_RoutesByType(t *testing.T) {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start rabbitmq container: %v", err)
	}
	defer func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}()

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	url := "amqp://guest:guest@" + endpoint + "/"

	pub, err := Dial(url, "group_order.events", 5)
	require.NoError(t, err)
	defer pub.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "payment.*", "group_order.events", false, nil))
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	gid := uuid.New()
	require.NoError(t, pub.Publish(ctx, New(StageAdvanced, gid, "staff", nil)))
	require.NoError(t, pub.Publish(ctx, New(PaymentRecorded, gid, "payer", map[string]string{"amount": "42.50"})))

	select {
	case m := <-msgs:
		assert.Equal(t, PaymentRecorded, m.RoutingKey)
		var e Event
		require.NoError(t, json.Unmarshal(m.Body, &e))
		assert.Equal(t, gid, e.GroupOrderID)
	case <-time.After(10 * time.Second):
		t.Fatal("no message received")
	}
}
