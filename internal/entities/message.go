package entities

import "time"

type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// ComponentKind identifies an interactive widget payload carried by a
// transcript message instead of text.
type ComponentKind string

const (
	ComponentOrderList       ComponentKind = "order_list"
	ComponentExchangeForm    ComponentKind = "exchange_form"
	ComponentTicketForm      ComponentKind = "ticket_form"
	ComponentEmailRequest    ComponentKind = "email_request"
	ComponentEscalationOffer ComponentKind = "escalation_offer"
)

// Component is the opaque UI payload rendered by the chat widget. Data holds
// kind-specific content (orders for an order list, prefill values for forms).
type Component struct {
	Kind ComponentKind  `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// Message is a live transcript entry. A message carries either Text or a
// Component, never both; component messages are excluded from persistence and
// from the transcript sent to the intent resolver.
type Message struct {
	ID        string     `json:"id"`
	Text      string     `json:"text,omitempty"`
	Sender    Sender     `json:"sender"`
	Component *Component `json:"component,omitempty"`
}

func TextMessage(id, text string, sender Sender) Message {
	return Message{ID: id, Text: text, Sender: sender}
}

func ComponentMessage(id string, c Component) Message {
	return Message{ID: id, Sender: SenderSystem, Component: &c}
}

// IsComponent reports whether the message is a rendered widget rather than text.
func (m Message) IsComponent() bool { return m.Component != nil }

// User identifies the widget visitor. Email may be empty until the visitor
// supplies one through the email-request prompt.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Feedback is the post-resolution rating attached to a conversation.
type Feedback struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
