package email

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/redmonkez12/my-finance/internal/logging"
)

// RetryNotifier retries failed deliveries with exponential backoff.
// Resending the same code is harmless.
type RetryNotifier struct {
	next     Notifier
	attempts uint64
	base     time.Duration
}

// NewRetryNotifier retries next up to retries extra times.
func NewRetryNotifier(next Notifier, retries uint64, base time.Duration) *RetryNotifier {
	return &RetryNotifier{next: next, attempts: retries, base: base}
}

func (n *RetryNotifier) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	backoff := retry.WithMaxRetries(n.attempts, retry.NewExponential(n.base))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := n.next.SendPasswordResetCode(ctx, toEmail, code); err != nil {
			logging.GetLoggerFromContext(ctx).Warn("reset code delivery attempt failed", "attempt", attempt, "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
}
