package email

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/my-finance/internal/logging"
)

type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     map[string]string
}

func (f *flakyNotifier) SendPasswordResetCode(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return ErrDeliveryFailed
	}
	if f.sent == nil {
		f.sent = make(map[string]string)
	}
	f.sent[to] = code
	return nil
}

func TestRetryNotifier(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		next := &flakyNotifier{failures: 2}
		n := NewRetryNotifier(next, 2, time.Millisecond)

		require.NoError(t, n.SendPasswordResetCode(context.Background(), "a@example.com", "123456"))
		assert.Equal(t, 3, next.calls)
		assert.Equal(t, "123456", next.sent["a@example.com"])
	})

	t.Run("gives up", func(t *testing.T) {
		next := &flakyNotifier{failures: 10}
		n := NewRetryNotifier(next, 2, time.Millisecond)

		err := n.SendPasswordResetCode(context.Background(), "a@example.com", "123456")
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Equal(t, 3, next.calls)
	})
}

type capturePublisher struct {
	queue string
	body  []byte
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, queue string, body []byte) error {
	p.queue, p.body = queue, body
	return p.err
}

func TestQueueNotifier(t *testing.T) {
	pub := &capturePublisher{}
	n := NewQueueNotifier(pub, "mail.password_reset")
	n.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, n.SendPasswordResetCode(context.Background(), "a@example.com", "654321"))
	assert.Equal(t, "mail.password_reset", pub.queue)

	var job ResetCodeJob
	require.NoError(t, json.Unmarshal(pub.body, &job))
	assert.Equal(t, "a@example.com", job.To)
	assert.Equal(t, "654321", job.Code)
	assert.True(t, job.RequestedAt.Equal(n.now()))

	pub.err = errors.New("channel closed")
	err := n.SendPasswordResetCode(context.Background(), "a@example.com", "654321")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

// ackRecorder implements amqp.Acknowledger.
type ackRecorder struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		return errors.New("unexpected requeue")
	}
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestWorker_Run(t *testing.T) {
	sender := &flakyNotifier{}
	acks := &ackRecorder{}
	w := NewWorker(sender, logging.Discard())

	job, err := json.Marshal(ResetCodeJob{To: "a@example.com", Code: "111222"})
	require.NoError(t, err)

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: job}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("{not json")}
	close(deliveries)

	require.NoError(t, w.Run(context.Background(), deliveries))

	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.nacked)
	assert.Equal(t, "111222", sender.sent["a@example.com"])
}

func TestWorker_SendFailureIsNacked(t *testing.T) {
	sender := &flakyNotifier{failures: 1}
	acks := &ackRecorder{}
	w := NewWorker(sender, logging.Discard())

	job, err := json.Marshal(ResetCodeJob{To: "a@example.com", Code: "111222"})
	require.NoError(t, err)

	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 7, Body: job}
	close(deliveries)

	require.NoError(t, w.Run(context.Background(), deliveries))
	assert.Empty(t, acks.acked)
	assert.Equal(t, []uint64{7}, acks.nacked)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	w := NewWorker(&flakyNotifier{}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, make(chan amqp.Delivery))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logging.Discard())
	assert.NoError(t, n.SendPasswordResetCode(context.Background(), "a@example.com", "123456"))
}
