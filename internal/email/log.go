package email

import (
	"context"

	"github.com/redmonkez12/my-finance/internal/logging"
)

// LogNotifier writes reset codes to the log instead of sending them.
// Only for local development.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordResetCode(_ context.Context, toEmail, code string) error {
	n.logger.Info("password reset code (not sent)", "email", toEmail, "code", code)
	return nil
}
