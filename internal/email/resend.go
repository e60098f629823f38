package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// resendTag groups portal mail in the Resend dashboard.
var resendTag = resend.Tag{Name: "category", Value: "placement_notification"}

// sendViaResend is the fallback transport. The plain body goes out alongside
// the HTML so text-only clients still see the message. A 429 is surfaced with
// its reset window; the email job retries with backoff.
func (s *Service) sendViaResend(ctx context.Context, to, subject, htmlBody, textBody string) (string, error) {
	if s.resendClient == nil {
		return "", fmt.Errorf("resend client not initialized")
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.resendFrom(),
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
		Text:    textBody,
		Tags:    []resend.Tag{resendTag},
	})
	if err == nil {
		return sent.Id, nil
	}

	var limited *resend.RateLimitError
	if errors.As(err, &limited) {
		s.logger.Warn().
			Str("remaining", limited.Remaining).
			Str("reset", limited.Reset).
			Msg("resend rate limit exceeded")
		return "", fmt.Errorf("resend rate limited, resets in %ss: %w", limited.Reset, err)
	}
	return "", fmt.Errorf("resend: %w", err)
}
