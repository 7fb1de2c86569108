package mailer

import (
	"context"
	"net/mail"
)

// Message is a fully composed email ready for a Transport.
type Message struct {
	From        mail.Address
	To          []string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file carried verbatim by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Transport delivers messages. Ping verifies the transport is reachable and
// its credentials are accepted.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
}
