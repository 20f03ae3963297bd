package service

import "context"

// DeliveryResult reports the outcome of a best-effort send. A failed
// delivery is a soft failure: it is recorded here and logged by the
// channel, never returned to the caller of the triggering mutation.
type DeliveryResult struct {
	Delivered bool
	Err       error
}

// Notifier delivers a formatted message to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) DeliveryResult
}
