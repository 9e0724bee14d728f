package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
)

// Message is a single multipart email.
type Message struct {
	ID      string
	To      []string
	Subject string
	// Text is the plain-text body; HTML, if set, is attached as an alternative.
	Text    string
	HTML    string
	Headers map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	GetHost() string
	GetPort() int
}

type sender struct {
	dialer         *gomail.Dialer
	senderAddress  string
	senderName     string
	retryCount     int
	retryBackoffMs int
	log            *zap.SugaredLogger
}

// NewSender creates a gomail backed Sender from the mail configuration.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	log = log.Named("mail")
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via config
	}

	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = config.DefaultSenderAddress
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = config.DefaultSenderName
	}

	// Set retry defaults if not configured
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryBackoffMs := cfg.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	log.Debugw("Retry configuration", "count", retryCount, "initialBackoffMs", retryBackoffMs)

	return &sender{
		dialer:         d,
		senderAddress:  senderAddr,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
		log:            log,
	}
}

func (s *sender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("cannot send mail without recipients")
	}

	s.log.Debugw("Preparing to send mail", "receivers", len(msg.To), "subject", msg.Subject)
	m := s.build(msg)

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(m)
		if err == nil {
			s.log.Infow("Mail sent", "receivers", len(msg.To), "attempt", attempt+1, "id", msg.ID)
			metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
			return nil
		}

		lastErr = err
		if attempt >= s.retryCount {
			s.log.Warnw("Failed to send mail", "attempts", s.retryCount+1, "error", err)
			break
		}

		s.log.Debugw("Send attempt failed, retrying", "attempt", attempt+1, "error", err, "backoffMs", backoffMs)
		select {
		case <-ctx.Done():
			metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
			return fmt.Errorf("sending mail aborted after %d attempts: %w", attempt+1, ctx.Err())
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
		}
		// Exponential backoff capped at ~32 seconds
		backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
	}

	metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
	return fmt.Errorf("sending mail to %d receivers: %w", len(msg.To), lastErr)
}

func (s *sender) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderAddress, s.senderName)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ID != "" {
		m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, senderDomain(s.senderAddress)))
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

func (s *sender) GetHost() string {
	return s.dialer.Host
}

func (s *sender) GetPort() int {
	return s.dialer.Port
}

// NewMessageID returns a fresh identifier for Message.ID.
func NewMessageID() string {
	return uuid.NewString()
}

func senderDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
