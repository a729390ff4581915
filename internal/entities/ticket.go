package entities

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "aberto"
	TicketInProgress TicketStatus = "em_andamento"
	TicketResolved   TicketStatus = "resolvido"
	TicketClosed     TicketStatus = "fechado"
	TicketArchived   TicketStatus = "arquivado"
)

// TicketSubjects is the closed set of subjects the resolver may pass to
// openSupportTicket. Anything else falls back to "outro".
var TicketSubjects = map[string]bool{
	"cancelamento":         true,
	"reembolso":            true,
	"troca":                true,
	"produto_defeituoso":   true,
	"produto_nao_recebido": true,
	"produto_errado":       true,
	"atraso_entrega":       true,
	"duvida_pagamento":     true,
	"outro":                true,
}

// NormalizeTicketSubject clamps a resolver-provided subject to the known set.
func NormalizeTicketSubject(s string) string {
	if TicketSubjects[s] {
		return s
	}
	return "outro"
}

type TicketHistoryItem struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Author    string    `json:"author"` // user | admin | system
	Type      string    `json:"type"`   // creation | comment | status_change
}

type Ticket struct {
	ID          string              `json:"id"`
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Status      TicketStatus        `json:"status"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Phone       string              `json:"phone,omitempty"`
	OrderNumber string              `json:"orderNumber,omitempty"`
	History     []TicketHistoryItem `json:"history"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// ShortID is the truncated ticket id shown to customers (#a1b2c3).
func (t Ticket) ShortID() string {
	if len(t.ID) <= 6 {
		return t.ID
	}
	return t.ID[:6]
}

// FAQEntry is one question/answer pair of the company FAQ.
type FAQEntry struct {
	ID        int    `json:"id"`
	CompanyID string `json:"companyId"`
	Category  string `json:"category"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// FAQResult is the outcome of a semantic FAQ lookup.
type FAQResult struct {
	Answer             string
	Sources            []FAQEntry
	SuggestedQuestions []string
}

// Company is the tenant context resolved from the visitor's email.
type Company struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Domains  []string `json:"domains"`
	Keywords []string `json:"keywords"`
	Greeting string   `json:"greeting"`
}
