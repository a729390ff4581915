package usecases

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"suporte-lojinha/internal/entities"
)

// ChatSession holds the live state of one open chat: the transcript, the
// visitor identity, flow counters and the order numbers mentioned so far.
// All access goes through the session's lock.
type ChatSession struct {
	mu sync.Mutex

	ID             string
	User           entities.User
	CompanyID      string
	ConversationID string

	Messages        []entities.Message
	Attempts        int
	MentionedOrders []string

	// EscalationOffered latches once the offer fires; it re-arms only when
	// the attempt counter resets.
	EscalationOffered bool

	// PendingOrderSearch holds an order code waiting for the visitor's
	// email before the lookup can be validated.
	PendingOrderSearch string

	// History is the visitor's recent persisted conversations, newest first.
	History []entities.Conversation

	ShowFeedback bool
	LastSeen     time.Time
}

func (s *ChatSession) Lock()   { s.mu.Lock() }
func (s *ChatSession) Unlock() { s.mu.Unlock() }

// appendText adds a text message to the transcript. Caller holds the lock.
func (s *ChatSession) appendText(text string, sender entities.Sender) entities.Message {
	msg := entities.TextMessage(uuid.NewString(), text, sender)
	s.Messages = append(s.Messages, msg)
	return msg
}

// appendComponent adds a widget message to the transcript. Caller holds the lock.
func (s *ChatSession) appendComponent(c entities.Component) entities.Message {
	msg := entities.ComponentMessage(uuid.NewString(), c)
	s.Messages = append(s.Messages, msg)
	return msg
}

// dropComponents removes rendered widgets from the transcript, the same way
// the chat clears a form once it is submitted or dismissed.
func (s *ChatSession) dropComponents() {
	kept := s.Messages[:0]
	for _, m := range s.Messages {
		if !m.IsComponent() {
			kept = append(kept, m)
		}
	}
	s.Messages = kept
}

// resetAttempts zeroes the attempt counter and re-arms the escalation offer.
// Caller holds the lock.
func (s *ChatSession) resetAttempts() {
	s.Attempts = 0
	s.EscalationOffered = false
}

// rememberOrders merges newly mentioned order codes, deduplicated, keeping
// first-seen order. Caller holds the lock.
func (s *ChatSession) rememberOrders(orders []string) {
	for _, o := range orders {
		known := false
		for _, existing := range s.MentionedOrders {
			if existing == o {
				known = true
				break
			}
		}
		if !known {
			s.MentionedOrders = append(s.MentionedOrders, o)
		}
	}
}

// setConversationID records the lazily created conversation row. Safe to call
// without holding the lock already.
func (s *ChatSession) setConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConversationID == "" {
		s.ConversationID = id
	}
}

// SessionRegistry keeps live chat sessions in memory, keyed by session id.
// Idle sessions are evicted by a janitor; durable identity lives in the
// session store, not here.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*ChatSession
	idleTTL  time.Duration
}

func NewSessionRegistry(idleTTL time.Duration) *SessionRegistry {
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	return &SessionRegistry{
		sessions: make(map[string]*ChatSession),
		idleTTL:  idleTTL,
	}
}

func (r *SessionRegistry) Get(id string) (*ChatSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the live session for id, creating it if absent.
func (r *SessionRegistry) GetOrCreate(id string) *ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &ChatSession{ID: id, CompanyID: "general", LastSeen: time.Now()}
		r.sessions[id] = s
	}
	return s
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep evicts sessions idle past the TTL and reports how many were removed.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.idleTTL)
	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.LastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Sweep periodically until stop is closed.
func (r *SessionRegistry) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
