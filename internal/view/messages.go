package view

import "time"

// Message lifetimes
const (
	InfoMessageTTL  = 3 * time.Second
	ErrorMessageTTL = 5 * time.Second
)

// MessageKind styles a per-item message
type MessageKind string

const (
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is a transient note attached to one displayed item
type Message struct {
	Text    string
	Kind    MessageKind
	Expires time.Time // zero keeps the message until replaced
}

// ShowMessage attaches a message to id. ttl <= 0 keeps it until replaced.
func (c *Controller) ShowMessage(id int, text string, kind MessageKind, ttl time.Duration) {
	msg := Message{Text: text, Kind: kind}
	if ttl > 0 {
		msg.Expires = c.now().Add(ttl)
	}
	c.messages[id] = msg
}

// ClearMessage removes the message of id
func (c *Controller) ClearMessage(id int) {
	delete(c.messages, id)
}

// Message returns the live message of id
func (c *Controller) Message(id int) (Message, bool) {
	msg, ok := c.messages[id]
	if !ok {
		return Message{}, false
	}
	if !msg.Expires.IsZero() && !c.now().Before(msg.Expires) {
		return Message{}, false
	}
	return msg, true
}

// ExpireMessages drops expired messages and reports whether any were removed
func (c *Controller) ExpireMessages() bool {
	now := c.now()
	removed := false
	for id, msg := range c.messages {
		if !msg.Expires.IsZero() && !now.Before(msg.Expires) {
			delete(c.messages, id)
			removed = true
		}
	}
	return removed
}
