package email

import (
	"context"
	"errors"
	"testing"
)

func TestSendRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		to   []string
		ok   bool
	}{
		{"none", nil, false},
		{"malformed", []string{"not-an-address"}, false},
		{"plain", []string{"member@example.com"}, true},
		{"named", []string{"Sam <sam@example.com>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SendRequest{To: tt.to}.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestNoopSender_RecordsAttachments(t *testing.T) {
	s := NewNoopSender()
	req := SendRequest{
		To:          []string{"member@example.com"},
		Subject:     "Your plan",
		Attachments: []Attachment{{Filename: "plan.pdf", Content: []byte("%PDF")}},
	}
	res, err := s.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID == "" {
		t.Error("MessageID is empty")
	}
	sent := s.Sent()
	if len(sent) != 1 || sent[0].Attachments[0].Filename != "plan.pdf" {
		t.Errorf("Sent() = %+v", sent)
	}
}

func TestNoopSender_RejectsInvalid(t *testing.T) {
	s := NewNoopSender()
	if _, err := s.Send(context.Background(), SendRequest{}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("Send = %v, want ErrNoRecipient", err)
	}
	if len(s.Sent()) != 0 {
		t.Error("invalid request was recorded")
	}
}
