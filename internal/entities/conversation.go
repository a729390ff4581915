package entities

import "time"

// ConversationMessage is the persistence projection of a transcript message.
// Component messages never become ConversationMessages.
type ConversationMessage struct {
	Text         string    `json:"text"`
	Sender       Sender    `json:"sender"`
	Timestamp    time.Time `json:"timestamp"`
	OrderNumbers []string  `json:"orderNumbers,omitempty"`
}

// Conversation is the durable record of one widget-open session. One row per
// sessionId, created lazily on the first function-call outcome and updated in
// place afterwards.
type Conversation struct {
	ID           string                `json:"id"`
	UserID       string                `json:"userId"` // visitor email
	SessionID    string                `json:"sessionId"`
	CompanyID    string                `json:"companyId"`
	Messages     []ConversationMessage `json:"messages"`
	OrderNumbers []string              `json:"orderNumbers"`
	Resolved     bool                  `json:"resolved"`
	Attempts     int                   `json:"attempts"`
	Feedback     *Feedback             `json:"feedback,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// ConversationUpdate carries the fields overwritten on each save. The
// transcript is replaced wholesale (latest write wins); identity fields on the
// row are left untouched.
type ConversationUpdate struct {
	Messages     []ConversationMessage
	OrderNumbers []string
	Resolved     bool
	Attempts     int
}
