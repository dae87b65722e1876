package booking

import (
	"context"
	"log"
)

// Notifier delivers booking confirmations to the traveler.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogNotifier writes confirmations to the process log. It stands in for a
// real mail provider in development and tests.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the notification.
func (n *LogNotifier) Send(_ context.Context, to, subject, htmlBody string) error {
	log.Printf("notification to %s: %s (%d bytes)", to, subject, len(htmlBody))
	return nil
}
