package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suporte-lojinha/internal/entities"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, userID, sessionID, companyID string, messages []entities.ConversationMessage, orderNumbers []string) (string, error) {
	id := uuid.NewString()
	if companyID == "" {
		companyID = "general"
	}
	if orderNumbers == nil {
		orderNumbers = []string{}
	}
	msgJSON, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversations (id, user_id, session_id, company_id, messages, order_numbers)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, userID, sessionID, companyID, msgJSON, orderNumbers)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// Update overwrites the transcript and flow counters wholesale. Identity
// columns never change after Create.
func (r *ConversationRepository) Update(ctx context.Context, id string, upd entities.ConversationUpdate) error {
	msgJSON, err := json.Marshal(upd.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	orderNumbers := upd.OrderNumbers
	if orderNumbers == nil {
		orderNumbers = []string{}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET messages = $2, order_numbers = $3, resolved = $4, attempts = $5, updated_at = NOW()
		WHERE id = $1
	`, id, msgJSON, orderNumbers, upd.Resolved, upd.Attempts)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, session_id, company_id, messages, order_numbers,
		       resolved, attempts, feedback, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id)
	conv, err := scanConversation(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return conv, err
}

// GetRecentByUser returns the user's conversations newest first.
func (r *ConversationRepository) GetRecentByUser(ctx context.Context, userID string, n int) ([]entities.Conversation, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, session_id, company_id, messages, order_numbers,
		       resolved, attempts, feedback, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) AttachFeedback(ctx context.Context, id string, rating int, comment string) error {
	fbJSON, err := json.Marshal(entities.Feedback{Rating: rating, Comment: comment, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET feedback = $2, updated_at = NOW() WHERE id = $1
	`, id, fbJSON)
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}

func scanConversation(row pgx.Row) (*entities.Conversation, error) {
	var conv entities.Conversation
	var msgJSON []byte
	var fbJSON []byte
	err := row.Scan(&conv.ID, &conv.UserID, &conv.SessionID, &conv.CompanyID,
		&msgJSON, &conv.OrderNumbers, &conv.Resolved, &conv.Attempts,
		&fbJSON, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(msgJSON, &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if len(fbJSON) > 0 {
		var fb entities.Feedback
		if err := json.Unmarshal(fbJSON, &fb); err != nil {
			return nil, fmt.Errorf("unmarshal feedback: %w", err)
		}
		conv.Feedback = &fb
	}
	return &conv, nil
}
