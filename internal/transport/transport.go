// Package transport hands fully rendered messages to a mail provider. The
// delivery dispatcher only sees the Mailer capability; concrete adapters
// cover SparkPost's HTTP API and AWS SES.
package transport

import "context"

// Message is one fully rendered email.
type Message struct {
	To        string
	ToName    string
	FromEmail string
	FromName  string
	Subject   string
	HTMLBody  string
	TextBody  string
	Metadata  map[string]string
}

// Result is the provider's immediate outcome: accepted for delivery or
// rejected with a reason. Later lifecycle events arrive out of band.
type Result struct {
	Accepted  bool
	MessageID string
	Reason    string
}

// Mailer accepts one rendered message and reports the immediate outcome.
// Implementations must honor ctx cancellation and deadlines.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}
