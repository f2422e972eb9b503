package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcknowledger stands in for the broker-backed amqp.Acknowledger so
// process's ack/nack decisions are verifiable without a real connection --
// it only ever talks to the Acknowledger interface, never the channel.
type fakeAcknowledger struct {
	mu           sync.Mutex
	acked        bool
	nacked       bool
	nackRequeue  bool
	nackMultiple bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.nackMultiple = multiple
	f.nackRequeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func passthroughBind(ctx context.Context, snap reqctx.Snapshot, handler func(context.Context) error) error {
	return handler(ctx)
}

func TestProcess_MalformedBodyIsDeadLetteredWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}

	c := &Consumer{bind: passthroughBind}
	c.process(context.Background(), d, func(ctx context.Context, snap reqctx.Snapshot) error {
		t.Fatal("handler must not run for an unparseable envelope")
		return nil
	})

	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeue, "a malformed envelope will never parse on retry")
	assert.False(t, ack.acked)
}

func TestProcess_HandlerSuccessAcks(t *testing.T) {
	ack := &fakeAcknowledger{}
	snap := reqctx.Snapshot{CompanyID: "company-1"}
	body, err := json.Marshal(snap)
	require.NoError(t, err)
	d := amqp.Delivery{Acknowledger: ack, Body: body}

	c := &Consumer{bind: passthroughBind}
	var gotSnap reqctx.Snapshot
	c.process(context.Background(), d, func(ctx context.Context, s reqctx.Snapshot) error {
		gotSnap = s
		return nil
	})

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, "company-1", gotSnap.CompanyID)
}

func TestProcess_HandlerFailureOnFirstDeliveryRequeues(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`), Redelivered: false}

	c := &Consumer{bind: passthroughBind}
	c.process(context.Background(), d, func(ctx context.Context, s reqctx.Snapshot) error {
		return errors.New("transient failure")
	})

	assert.True(t, ack.nacked)
	assert.True(t, ack.nackRequeue, "first failure should be requeued once")
}

func TestProcess_HandlerFailureOnRedeliveryDeadLetters(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`), Redelivered: true}

	c := &Consumer{bind: passthroughBind}
	c.process(context.Background(), d, func(ctx context.Context, s reqctx.Snapshot) error {
		return errors.New("still failing")
	})

	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeue, "a delivery failing after redelivery is dead-lettered, not looped forever")
}

func TestProcess_BindErrorIsTreatedAsHandlerFailure(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`), Redelivered: false}

	c := &Consumer{bind: func(ctx context.Context, snap reqctx.Snapshot, handler func(context.Context) error) error {
		return errors.New("cannot bind tenant transaction")
	}}
	c.process(context.Background(), d, func(ctx context.Context, s reqctx.Snapshot) error {
		t.Fatal("handler must not run when bind itself fails")
		return nil
	})

	assert.True(t, ack.nacked)
	assert.True(t, ack.nackRequeue)
}
