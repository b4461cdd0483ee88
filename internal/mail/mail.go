package mail

import "context"

// Mailer is the interface for delivering digest mail.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is a single outbound mail. HTMLBody and TextBody are alternative
// renderings of the same content; senders include both when they can.
type Message struct {
	From        string
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is an inline file attached to a Message.
type Attachment struct {
	Filename string
	Content  []byte
}
