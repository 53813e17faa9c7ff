package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/redmonkez12/my-finance/internal/logging"
)

// ResetCodeJob is the message placed on the mail queue.
type ResetCodeJob struct {
	To          string    `json:"to"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher is the part of RabbitMQClient the queue notifier needs.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// QueueNotifier hands reset codes to the mail worker through a queue.
// Delivery counts as done once the broker accepted the message.
type QueueNotifier struct {
	publisher Publisher
	queue     string
	now       func() time.Time
}

func NewQueueNotifier(publisher Publisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue, now: time.Now}
}

func (n *QueueNotifier) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	body, err := json.Marshal(ResetCodeJob{To: toEmail, Code: code, RequestedAt: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := n.publisher.Publish(ctx, n.queue, body); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", ErrDeliveryFailed, n.queue, err)
	}

	logging.GetLoggerFromContext(ctx).Info("password reset code queued", "queue", n.queue)
	return nil
}

// Worker sends the jobs a QueueNotifier published.
type Worker struct {
	sender Notifier
	logger *logging.Logger
}

func NewWorker(sender Notifier, logger *logging.Logger) *Worker {
	return &Worker{sender: sender, logger: logger}
}

// Run processes deliveries until ctx is cancelled or the channel closes.
// Successful sends are acked. Malformed jobs and jobs that still fail are
// dropped without requeue; the user can request a new code.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var job ResetCodeJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.To == "" || job.Code == "" {
		w.logger.Error("dropping malformed mail job", "delivery_tag", d.DeliveryTag)
		if err := d.Nack(false, false); err != nil {
			w.logger.Error("failed to nack delivery", "error", err.Error())
		}
		return
	}

	logger := w.logger.WithFields(map[string]any{"delivery_tag": d.DeliveryTag})
	ctx = logging.WithLogger(ctx, logger)

	if err := w.sender.SendPasswordResetCode(ctx, job.To, job.Code); err != nil {
		logger.Error("failed to deliver queued reset code", "error", err.Error())
		if err := d.Nack(false, false); err != nil {
			logger.Error("failed to nack delivery", "error", err.Error())
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Error("failed to ack delivery", "error", err.Error())
	}
}
