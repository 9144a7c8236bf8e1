package alerting

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deedwatch/internal/storage"
)

// EmailOptions configure the SMTP dispatcher.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails alerts through an SMTP relay.
type EmailNotifier struct {
	opts     EmailOptions
	sendMail sendMailFunc
	now      func() time.Time
	logger   zerolog.Logger
}

// NewEmailNotifier builds an SMTP dispatcher. Port defaults to 587.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Port <= 0 {
		opts.Port = 587
	}
	return &EmailNotifier{
		opts:     opts,
		sendMail: smtp.SendMail,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "alert_email").Logger(),
	}
}

// Name identifies the channel.
func (n *EmailNotifier) Name() string { return "email" }

// Dispatch sends one plain-text message to every recipient.
func (n *EmailNotifier) Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error) {
	if len(n.opts.To) == 0 {
		return Delivery{}, fmt.Errorf("email: no recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}
	addr := net.JoinHostPort(n.opts.Host, strconv.Itoa(n.opts.Port))
	if err := n.sendMail(addr, auth, n.opts.From, n.opts.To, n.message(alert)); err != nil {
		return Delivery{}, fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().Str("alert_id", alert.ID.String()).
		Int("recipients", len(n.opts.To)).
		Msg("alert sent (email)")
	return Delivery{Channel: n.Name(), SentAt: n.now()}, nil
}

func (n *EmailNotifier) message(alert storage.SaleAlert) []byte {
	subject := "Property Sale Alert: " + headerSafe(firstNonBlank(alert.Address, alert.APN))
	if alert.Priority == storage.PriorityHigh {
		subject = "[HIGH] " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerSafe(n.opts.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerSafe(strings.Join(n.opts.To, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(RenderMessage(alert), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func headerSafe(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "Unknown"
}

var _ Dispatcher = (*EmailNotifier)(nil)
