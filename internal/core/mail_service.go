package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type mailService struct {
	sender EmailSender
}

func NewMailService(sender EmailSender) MailService {
	return &mailService{sender: sender}
}

// SendTestEmail sends the fixed test message through settings. Transport
// errors are returned unchanged so the caller can show them.
func (s *mailService) SendTestEmail(ctx context.Context, settings models.SMTPSettings, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	msg, err := testEmail(to)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, toMailerSettings(settings), msg)
}
