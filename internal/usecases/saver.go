package usecases

import (
	"context"
	"log"
	"time"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/infrastructure"
	"suporte-lojinha/internal/interfaces"
)

// saveJob is one queued conversation write: a transcript snapshot plus the
// session it belongs to, so the conversation id can be attached after a lazy
// create.
type saveJob struct {
	session      *ChatSession
	userID       string
	sessionID    string
	companyID    string
	convID       string
	messages     []entities.ConversationMessage
	orderNumbers []string
	resolved     bool
	attempts     int
	barrier      chan struct{}
}

// ConversationSaver persists conversations off the request path. Writes are
// queued and applied in order by a single worker, so a failed save never
// delays a chat reply. Flush drains the queue, which tests rely on.
type ConversationSaver struct {
	store interfaces.ConversationStore
	jobs  chan saveJob
	done  chan struct{}
}

func NewConversationSaver(store interfaces.ConversationStore) *ConversationSaver {
	s := &ConversationSaver{
		store: store,
		jobs:  make(chan saveJob, 64),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue snapshots the session transcript and queues the write. Caller must
// hold the session lock.
func (s *ConversationSaver) Enqueue(sess *ChatSession, resolved bool) {
	if sess.User.Email == "" || len(sess.Messages) == 0 {
		return
	}

	var messages []entities.ConversationMessage
	seen := make(map[string]bool)
	var orderNumbers []string
	for _, m := range sess.Messages {
		if m.IsComponent() {
			continue
		}
		orders := infrastructure.ExtractOrderNumbers(m.Text)
		messages = append(messages, entities.ConversationMessage{
			Text:         m.Text,
			Sender:       m.Sender,
			Timestamp:    time.Now(),
			OrderNumbers: orders,
		})
		for _, o := range orders {
			if !seen[o] {
				seen[o] = true
				orderNumbers = append(orderNumbers, o)
			}
		}
	}

	job := saveJob{
		session:      sess,
		userID:       sess.User.Email,
		sessionID:    sess.ID,
		companyID:    sess.CompanyID,
		convID:       sess.ConversationID,
		messages:     messages,
		orderNumbers: orderNumbers,
		resolved:     resolved,
		attempts:     sess.Attempts,
	}

	select {
	case s.jobs <- job:
	default:
		// Queue full: apply inline rather than dropping the write.
		s.apply(job)
	}
}

// Flush blocks until every queued write has been applied.
func (s *ConversationSaver) Flush() {
	barrier := make(chan struct{})
	s.jobs <- saveJob{barrier: barrier}
	<-barrier
}

// Close stops the worker after draining the queue.
func (s *ConversationSaver) Close() {
	close(s.jobs)
	<-s.done
}

func (s *ConversationSaver) run() {
	defer close(s.done)
	for job := range s.jobs {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		s.apply(job)
	}
}

func (s *ConversationSaver) apply(job saveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if job.convID == "" {
		id, err := s.store.Create(ctx, job.userID, job.sessionID, job.companyID, job.messages, job.orderNumbers)
		if err != nil {
			log.Printf("[saver] create conversation failed: %v", err)
			return
		}
		job.session.setConversationID(id)
		job.convID = id
	}

	err := s.store.Update(ctx, job.convID, entities.ConversationUpdate{
		Messages:     job.messages,
		OrderNumbers: job.orderNumbers,
		Resolved:     job.resolved,
		Attempts:     job.attempts,
	})
	if err != nil {
		log.Printf("[saver] update conversation failed: %v", err)
	}
}
