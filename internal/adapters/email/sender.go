package email

import (
	"context"
	"errors"
	"net/mail"
	"time"
)

// ErrNoRecipient is returned when a request has no usable address.
var ErrNoRecipient = errors.New("a valid recipient address is required")

// Attachment is a file sent alongside the message body.
type Attachment struct {
	Filename string
	Content  []byte
}

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To          []string // Recipient email addresses
	From        string   // Sender address, e.g. "Nightfall Fitness <plans@example.com>"
	Subject     string
	HTML        string
	ReplyTo     string
	Attachments []Attachment
}

// Validate checks every recipient parses as an address.
// POST: Returns ErrNoRecipient when To is empty or any entry is malformed
func (r SendRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range r.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return ErrNoRecipient
		}
	}
	return nil
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
