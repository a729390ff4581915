package interfaces

import (
	"context"
	"time"

	"suporte-lojinha/internal/entities"
)

// TranscriptTurn is one role-tagged prior turn sent to the intent resolver.
type TranscriptTurn struct {
	Role string `json:"role"` // user | model
	Text string `json:"text"`
}

// IntentResolver is the language-model collaborator. It is stateless between
// calls: the caller re-supplies the whole transcript plus a context annotation
// every turn. A nil-response error means "no response" and must degrade to an
// apology, never crash the transcript.
type IntentResolver interface {
	Resolve(ctx context.Context, transcript []TranscriptTurn, turn string) (*entities.ResolverResponse, error)
}

// OrderGateway is the fulfillment API consumed for lookups and tracking.
type OrderGateway interface {
	FindOrdersByCustomer(ctx context.Context, email, phone string) ([]entities.Order, error)
	TrackOrder(ctx context.Context, codeOrEmail, customerEmail string) (entities.TrackingInfo, error)
}

// TicketService creates and lists support tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, t entities.Ticket) (string, error)
	TicketsByUser(ctx context.Context, email, phone string) ([]entities.Ticket, error)
}

// FAQSearcher answers free-text questions from the FAQ corpus.
type FAQSearcher interface {
	SearchSemantic(ctx context.Context, query, companyID string) (entities.FAQResult, error)
	SearchKeyword(ctx context.Context, query string) (string, error)
}

// ConversationStore persists conversations. Update overwrites the transcript
// wholesale; identity fields keep merge semantics.
type ConversationStore interface {
	Create(ctx context.Context, userID, sessionID, companyID string, messages []entities.ConversationMessage, orderNumbers []string) (string, error)
	Update(ctx context.Context, id string, upd entities.ConversationUpdate) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	GetRecentByUser(ctx context.Context, userID string, n int) ([]entities.Conversation, error)
	AttachFeedback(ctx context.Context, id string, rating int, comment string) error
}

// CompanyResolver maps visitors to tenant context.
type CompanyResolver interface {
	CompanyFromEmail(ctx context.Context, email string) (string, error)
	GreetingFor(ctx context.Context, companyID string) (string, error)
}

// StaffNotifier pushes operational events (new ticket, human escalation) to
// the support team. Failures are logged and swallowed by callers.
type StaffNotifier interface {
	NotifyTicket(t entities.Ticket)
	NotifyEscalation(userEmail, sessionID string)
}

// Mailer sends transactional mail through the email proxy.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SessionStore is the durable session-identity registry (30-day TTL).
type SessionStore interface {
	Get(id string) (expiresAt time.Time, ok bool, err error)
	Put(id, userEmail string, expiresAt time.Time) error
	Sweep() (int, error)
}
