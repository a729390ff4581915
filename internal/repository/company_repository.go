package repository

import (
	"context"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suporte-lojinha/internal/entities"
)

// DefaultGreeting is used when a tenant has no greeting of its own.
const DefaultGreeting = "Olá! Como posso ajudar?"

type CompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// CompanyFromEmail identifies the tenant a visitor belongs to: first by the
// email's domain (the part before the first dot, e.g. user@prio.com -> prio),
// then by keyword substring match over the whole address. Unmatched visitors
// land in "general". Lookup errors also fall back to "general".
func (r *CompanyRepository) CompanyFromEmail(ctx context.Context, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return "general", nil
	}
	domain := strings.SplitN(parts[1], ".", 2)[0]

	var id string
	err := r.db.QueryRow(ctx, `
		SELECT id FROM companies WHERE $1 = ANY(domains) LIMIT 1
	`, domain).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		log.Printf("[company] domain lookup failed: %v", err)
		return "general", nil
	}

	rows, err := r.db.Query(ctx, "SELECT id, keywords FROM companies")
	if err != nil {
		log.Printf("[company] keyword lookup failed: %v", err)
		return "general", nil
	}
	defer rows.Close()

	for rows.Next() {
		var companyID string
		var keywords []string
		if err := rows.Scan(&companyID, &keywords); err != nil {
			continue
		}
		for _, kw := range keywords {
			if kw != "" && strings.Contains(normalized, strings.ToLower(kw)) {
				return companyID, nil
			}
		}
	}
	return "general", nil
}

func (r *CompanyRepository) GetCompany(ctx context.Context, id string) (*entities.Company, error) {
	var c entities.Company
	var greeting *string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, domains, keywords, greeting FROM companies WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Domains, &c.Keywords, &greeting)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if greeting != nil {
		c.Greeting = *greeting
	}
	return &c, nil
}

// GreetingFor returns the tenant greeting, falling back to the default on a
// missing tenant or empty greeting.
func (r *CompanyRepository) GreetingFor(ctx context.Context, companyID string) (string, error) {
	company, err := r.GetCompany(ctx, companyID)
	if err != nil {
		log.Printf("[company] greeting lookup failed: %v", err)
		return DefaultGreeting, nil
	}
	if company == nil || company.Greeting == "" {
		return DefaultGreeting, nil
	}
	return company.Greeting, nil
}
