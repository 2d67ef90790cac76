package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	err    error
	sent   []published
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func testEvent() contentqueue.Event {
	at := time.Date(2030, 1, 2, 14, 0, 0, 0, time.UTC)
	item := &domain.QueueItem{ID: "item-1", Slug: "hello", Title: "Hello", Status: domain.QueueStatusPublished}
	return contentqueue.NewEvent(contentqueue.EventPublished, item, at)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "queue.published", RoutingKey(contentqueue.EventPublished))
	assert.Equal(t, "queue.social_updated", RoutingKey(contentqueue.EventSocialUpdated))
}

func TestBuildMessage(t *testing.T) {
	event := testEvent()

	msg, err := buildMessage(event)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "published", msg.Type)
	assert.True(t, event.At.Equal(msg.Timestamp))
	assert.Contains(t, msg.MessageId, "item-1:published:")

	var decoded contentqueue.Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event.ItemID, decoded.ItemID)
	assert.Equal(t, domain.QueueStatusPublished, decoded.Status)
}

func TestPublisher_PublishEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{exchange: DefaultExchange, ch: ch}

	require.NoError(t, p.PublishEvent(context.Background(), testEvent()))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "contentq.events", ch.sent[0].exchange)
	assert.Equal(t, "queue.published", ch.sent[0].key)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_PublishEvent_Error(t *testing.T) {
	p := &Publisher{exchange: DefaultExchange, ch: &fakeChannel{err: amqp.ErrClosed}}

	err := p.PublishEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.Contains(t, err.Error(), "publish published event")
}
