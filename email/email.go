// Package email is the outbound-mail boundary. The workflow engine depends
// only on Dispatcher; a concrete implementation is selected once at process
// start. Delivery failure is reported as a boolean so callers decide how
// severe an undelivered message is.
package email

import "context"

// Attachment is a file carried by an outbound message.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Message is a single outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Dispatcher sends a message best-effort. Implementations log their own
// failures; the return value only says whether the provider accepted it.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) bool
}
