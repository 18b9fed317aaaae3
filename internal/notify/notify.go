// Package notify is the boundary to the platform notification service.
// Delivery is best-effort, at most once, and no return value is consumed
// by the engine.
package notify

import (
	"context"
	"log"
)

// Notifier delivers a notification to a consumer or operator. Implementations
// must never block the caller on delivery problems.
type Notifier interface {
	Notify(ctx context.Context, recipientType string, recipientID uint64, category, title, body string, data map[string]any)
}

// LogNotifier is the in-process stand-in for the external delivery
// service: it records each intended notification in the server log.
type LogNotifier struct{}

// Notify writes the notification to the log.
func (LogNotifier) Notify(_ context.Context, recipientType string, recipientID uint64, category, title, _ string, _ map[string]any) {
	log.Printf("notify: %s=%d category=%s title=%q", recipientType, recipientID, category, title)
}
