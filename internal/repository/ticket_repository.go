package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"suporte-lojinha/internal/entities"
)

type TicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

var phoneDigits = regexp.MustCompile(`\D`)

// Insert persists a new ticket. The subject is clamped to the known set, the
// phone is stored digits-only and the history opens with a creation entry.
func (r *TicketRepository) Insert(ctx context.Context, t entities.Ticket) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	description := t.Description
	if description == "" {
		description = "Ticket criado pelo cliente."
	}
	history := []entities.TicketHistoryItem{{
		Timestamp: now,
		Author:    "user",
		Type:      "creation",
		Content:   description,
	}}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", err
	}

	priority := t.Priority
	if priority == "" {
		priority = "media"
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO tickets (id, subject, description, priority, status, name, email, phone, order_number, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, entities.NormalizeTicketSubject(t.Subject), description, priority,
		entities.TicketOpen, t.Name, t.Email,
		phoneDigits.ReplaceAllString(t.Phone, ""), t.OrderNumber, historyJSON)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

// ByUser lists a customer's tickets by email or phone, newest first,
// archived ones excluded.
func (r *TicketRepository) ByUser(ctx context.Context, email, phone string) ([]entities.Ticket, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, subject, description, priority, status, name, email, phone,
		       order_number, history, created_at, updated_at
		FROM tickets
		WHERE status <> 'arquivado'
		  AND (($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2))
		ORDER BY created_at DESC
	`, email, phoneDigits.ReplaceAllString(phone, ""))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Ticket
	for rows.Next() {
		var t entities.Ticket
		var historyJSON []byte
		err := rows.Scan(&t.ID, &t.Subject, &t.Description, &t.Priority, &t.Status,
			&t.Name, &t.Email, &t.Phone, &t.OrderNumber, &historyJSON,
			&t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(historyJSON, &t.History); err != nil {
			return nil, fmt.Errorf("unmarshal ticket history: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
