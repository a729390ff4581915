package usecases

import (
	"context"
	"fmt"
	"log"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/infrastructure"
	"suporte-lojinha/internal/interfaces"
)

// TicketRepo is the persistence half of ticket handling.
type TicketRepo interface {
	Insert(ctx context.Context, t entities.Ticket) (string, error)
	ByUser(ctx context.Context, email, phone string) ([]entities.Ticket, error)
}

// TicketManager persists tickets and fans out the side effects: confirmation
// email to the customer, staff notification. Side-effect failures are logged
// and never fail the ticket.
type TicketManager struct {
	repo     TicketRepo
	mailer   interfaces.Mailer
	notifier interfaces.StaffNotifier
}

func NewTicketManager(repo TicketRepo, mailer interfaces.Mailer, notifier interfaces.StaffNotifier) *TicketManager {
	return &TicketManager{repo: repo, mailer: mailer, notifier: notifier}
}

func (m *TicketManager) CreateTicket(ctx context.Context, t entities.Ticket) (string, error) {
	t.Subject = entities.NormalizeTicketSubject(t.Subject)
	id, err := m.repo.Insert(ctx, t)
	if err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}
	t.ID = id

	if m.mailer != nil && t.Email != "" {
		subject, body := infrastructure.TicketCreatedEmail(t.Name, t.ShortID(), t.Subject, t.OrderNumber)
		if err := m.mailer.Send(ctx, t.Email, subject, body); err != nil {
			log.Printf("[tickets] confirmation email failed for #%s: %v", t.ShortID(), err)
		}
	}
	if m.notifier != nil {
		m.notifier.NotifyTicket(t)
	}
	return id, nil
}

func (m *TicketManager) TicketsByUser(ctx context.Context, email, phone string) ([]entities.Ticket, error) {
	return m.repo.ByUser(ctx, email, phone)
}
