//go:build integration

package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_DeliversToBoundQueue(t *testing.T) {
	ctx := context.Background()

	broker, err := testutil.NewRabbitMQContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(context.Background()) })

	publisher, err := Dial(broker.URL, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	conn, err := amqp.Dial(broker.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "queue.published", DefaultExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	at := time.Date(2030, 1, 2, 14, 0, 0, 0, time.UTC)
	item := &domain.QueueItem{ID: "item-1", Slug: "hello", Title: "Hello", Status: domain.QueueStatusPublished, ScheduledAt: &at}

	require.NoError(t, publisher.PublishEvent(ctx, contentqueue.NewEvent(contentqueue.EventQueued, item, at)))
	require.NoError(t, publisher.PublishEvent(ctx, contentqueue.NewEvent(contentqueue.EventPublished, item, at)))

	select {
	case d := <-deliveries:
		assert.Equal(t, "queue.published", d.RoutingKey)
		assert.Equal(t, "application/json", d.ContentType)

		var event contentqueue.Event
		require.NoError(t, json.Unmarshal(d.Body, &event))
		assert.Equal(t, contentqueue.EventPublished, event.Type)
		assert.Equal(t, "hello", event.Slug)
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery received")
	}
}
