package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/config"
	"github.com/prepsphere/server/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

const defaultSubject = "Message from TPO"

var (
	// ErrNotConfigured is returned when neither SMTP nor Resend is set up.
	ErrNotConfigured = errors.New("email delivery is not configured")
	// ErrInvalidRecipient marks an address that will never be deliverable:
	// malformed, or refused by the SMTP server with a permanent reply.
	ErrInvalidRecipient = errors.New("invalid recipient email")
)

// Service delivers notification emails. SMTP is tried first; Resend is the
// fallback when SMTP is not configured or fails.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	smtpSend     func(ctx context.Context, from, to string, msg []byte) error
	logger       zerolog.Logger
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
	}
	s.smtpSend = s.sendSMTP

	if cfg.Enabled && cfg.SMTPHost != "" {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid SMTP sender in config: %w", err)
		}
	}
	if cfg.ResendAPIKey != "" {
		if err := validateEmailAddress(s.resendFrom()); err != nil {
			return nil, fmt.Errorf("invalid Resend sender in config: %w", err)
		}
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// Configured reports whether at least one transport can be used.
func (s *Service) Configured() bool {
	return s.config.Enabled && (s.smtpConfigured() || s.resendClient != nil)
}

func (s *Service) smtpConfigured() bool {
	return s.config.SMTPHost != "" && s.config.SMTPUser != "" && s.config.SMTPPassword != ""
}

func (s *Service) resendFrom() string {
	if s.config.ResendFrom != "" {
		return s.config.ResendFrom
	}
	return s.config.From
}

// Send delivers a plain message, rendered as a single HTML paragraph. It
// returns the transport that accepted it ("smtp" or "resend").
func (s *Service) Send(ctx context.Context, to, subject, body string) (string, error) {
	if err := validateEmailAddress(to); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	if !s.Configured() {
		metrics.EmailsSentTotal.WithLabelValues("none", "skipped").Inc()
		return "", ErrNotConfigured
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = defaultSubject
	}
	htmlBody := "<p>" + html.EscapeString(body) + "</p>"

	var smtpErr error
	if s.smtpConfigured() {
		msg := buildMessage(s.config.From, to, subject, htmlBody)
		smtpErr = s.smtpSend(ctx, s.config.From, to, msg)
		if smtpErr == nil {
			metrics.EmailsSentTotal.WithLabelValues("smtp", "sent").Inc()
			s.logger.Info().Str("to", to).Msg("email sent via SMTP")
			return "smtp", nil
		}
		metrics.EmailsSentTotal.WithLabelValues("smtp", "failed").Inc()
		s.logger.Warn().Err(smtpErr).Str("to", to).Msg("SMTP delivery failed")
	}

	if s.resendClient == nil {
		return "", fmt.Errorf("send via SMTP: %w", smtpErr)
	}

	id, err := s.sendViaResend(ctx, to, subject, htmlBody, body)
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues("resend", "failed").Inc()
		return "", errors.Join(smtpErr, err)
	}
	metrics.EmailsSentTotal.WithLabelValues("resend", "sent").Inc()
	s.logger.Info().Str("email_id", id).Str("to", to).Msg("email sent via Resend")
	return "resend", nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var msg bytes.Buffer
	writeHeader := func(k, v string) {
		msg.WriteString(k + ": " + v + "\r\n")
	}
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", subject))
	writeHeader("Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/html; charset=UTF-8")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.Bytes()
}

// sendSMTP speaks implicit TLS on port 465 and STARTTLS everywhere else.
func (s *Service) sendSMTP(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.config.SMTPHost, strconv.Itoa(s.config.SMTPPort))
	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	var conn net.Conn
	var err error
	if s.config.SMTPPort == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open SMTP session: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.config.SMTPPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("start TLS: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return recipientError(err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return client.Quit()
}

// recipientError tags 5xx RCPT replies as permanent recipient failures.
func recipientError(err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600 {
		return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	return fmt.Errorf("set recipient: %w", err)
}
