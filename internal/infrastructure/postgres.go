package infrastructure

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Conversations: one row per chat session, transcript stored as JSONB
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			session_id VARCHAR(64) NOT NULL,
			company_id VARCHAR(50) NOT NULL DEFAULT 'general',
			messages JSONB NOT NULL DEFAULT '[]',
			order_numbers TEXT[] NOT NULL DEFAULT '{}',
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			attempts INT NOT NULL DEFAULT 0,
			feedback JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_conversations_user
		ON conversations (user_id, updated_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}

	// Companies: tenant registry matched against visitor email domains
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS companies (
			id VARCHAR(50) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			domains TEXT[] NOT NULL DEFAULT '{}',
			keywords TEXT[] NOT NULL DEFAULT '{}',
			greeting TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create companies table: %w", err)
	}

	// Support tickets with embedded history log
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tickets (
			id UUID PRIMARY KEY,
			subject VARCHAR(50) NOT NULL,
			description TEXT NOT NULL,
			priority VARCHAR(20) NOT NULL DEFAULT 'media',
			status VARCHAR(20) NOT NULL DEFAULT 'aberto',
			name VARCHAR(255),
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(30),
			order_number VARCHAR(50),
			history JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create tickets table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_tickets_email
		ON tickets (email, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("create tickets index: %w", err)
	}

	// FAQ entries, per company
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS faq_entries (
			id SERIAL PRIMARY KEY,
			company_id VARCHAR(50) NOT NULL DEFAULT 'general',
			category VARCHAR(100),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create faq_entries table: %w", err)
	}

	// Free-form knowledge base articles for the keyword fallback search
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS knowledge_base (
			id SERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create knowledge_base table: %w", err)
	}

	var count int
	if err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		log.Println("[postgres] companies table empty, seeding 'general' tenant")
		_, err = p.Pool.Exec(ctx, `
			INSERT INTO companies (id, name) VALUES ('general', 'Geral')
			ON CONFLICT (id) DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("seed general company: %w", err)
		}
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
