package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/logging"
)

// ErrDeliveryFailed wraps every transport failure of a notifier.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Notifier delivers password reset codes.
type Notifier interface {
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
}

type sendFunc func(ctx context.Context, from, to string, msg []byte) error

// Service sends mail through an SMTP relay.
type Service struct {
	host     string
	port     string
	username string
	password string
	from     string
	useTLS   bool
	useSSL   bool
	timeout  time.Duration
	codeTTL  time.Duration

	send sendFunc
}

func NewService(cfg config.MailConfig, codeTTL time.Duration) *Service {
	s := &Service{
		host:     cfg.Server,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		useTLS:   cfg.UseTLS,
		useSSL:   cfg.UseSSL,
		timeout:  cfg.Timeout,
		codeTTL:  codeTTL,
	}
	s.send = s.sendSMTP
	return s
}

// SendPasswordResetCode emails the reset code to the user. The address is
// not logged; callers put the user id on the context logger.
func (s *Service) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	logger := logging.GetLoggerFromContext(ctx)

	data := resetCodeData{
		Code:      code,
		ExpiresIn: formatMinutes(s.codeTTL),
	}

	msg, err := s.buildMessage(toEmail, "Your password reset code", data)
	if err != nil {
		logger.Error("failed to render password reset email", "error", err.Error())
		return fmt.Errorf("render template: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.send(ctx, s.from, toEmail, msg); err != nil {
		logger.Error("failed to send password reset email", "error", err.Error())
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	logger.Info("password reset email sent")
	return nil
}

// sendSMTP delivers one message. Implicit TLS is used when useSSL is set,
// otherwise STARTTLS is required when useTLS is set.
func (s *Service) sendSMTP(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.host, s.port)
	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if s.useSSL {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.useTLS && !s.useSSL {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish body: %w", err)
	}

	return c.Quit()
}

type resetCodeData struct {
	Code      string
	ExpiresIn string
}

// buildMessage renders a multipart/alternative message with plain text and
// HTML bodies.
func (s *Service) buildMessage(to, subject string, data resetCodeData) ([]byte, error) {
	var text bytes.Buffer
	if err := resetCodeText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("execute text template: %w", err)
	}

	var html bytes.Buffer
	if err := resetCodeHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", text.Bytes()},
		{"text/html; charset=UTF-8", html.Bytes()},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func formatMinutes(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

var resetCodeText = texttemplate.Must(texttemplate.New("resetCodeText").Parse(strings.TrimSpace(`
You requested to reset your password.

Your reset code is: {{.Code}}

The code expires in {{.ExpiresIn}}. If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.
`) + "\r\n"))

var resetCodeHTML = htmltemplate.Must(htmltemplate.New("resetCodeHTML").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            font-size: 32px;
            font-weight: bold;
            letter-spacing: 8px;
            color: #4F46E5;
            text-align: center;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>Password Reset Request</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>You requested to reset your password. Enter this code in the app to choose a new one.</p>

        <p class="code">{{.Code}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>This code will expire in {{.ExpiresIn}}.</p>
        <p>&copy; 2026 My Finance. All rights reserved.</p>
    </div>
</body>
</html>
`))
