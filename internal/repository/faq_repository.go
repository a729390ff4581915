package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/philippgille/chromem-go"

	"suporte-lojinha/internal/entities"
)

// FAQNoAnswer is what the customer sees when neither search finds anything.
const FAQNoAnswer = "Não encontrei uma resposta direta para sua pergunta no nosso FAQ. Você gostaria que eu abrisse um chamado de suporte?"

// minFAQSimilarity cuts off semantic matches too weak to surface.
const minFAQSimilarity = 0.3

// FAQRepository answers customer questions from two corpora: the structured
// faq_entries table indexed in an in-memory chromem collection, and the
// free-form knowledge_base table searched by keyword scoring.
type FAQRepository struct {
	db         *pgxpool.Pool
	collection *chromem.Collection
}

func NewFAQRepository(db *pgxpool.Pool) (*FAQRepository, error) {
	vdb := chromem.NewDB()

	var embeddingFunc chromem.EmbeddingFunc
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		embeddingFunc = chromem.NewEmbeddingFuncOpenAI(key, chromem.EmbeddingModelOpenAI3Small)
	} else {
		log.Println("[faq] OPENAI_API_KEY not set, using default embeddings")
	}

	collection, err := vdb.GetOrCreateCollection("faq", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create faq collection: %w", err)
	}

	repo := &FAQRepository{db: db, collection: collection}
	if err := repo.Reindex(context.Background()); err != nil {
		log.Printf("[faq] initial index failed, semantic search degraded: %v", err)
	}
	return repo, nil
}

// Reindex loads all FAQ entries into the vector collection.
func (r *FAQRepository) Reindex(ctx context.Context) error {
	rows, err := r.db.Query(ctx, "SELECT id, company_id, category, question, answer FROM faq_entries")
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var entry entities.FAQEntry
		if err := rows.Scan(&entry.ID, &entry.CompanyID, &entry.Category, &entry.Question, &entry.Answer); err != nil {
			return err
		}
		err := r.collection.AddDocument(ctx, chromem.Document{
			ID:      fmt.Sprintf("faq-%d", entry.ID),
			Content: entry.Question + "\n" + entry.Answer,
			Metadata: map[string]string{
				"company_id": entry.CompanyID,
				"category":   entry.Category,
				"question":   entry.Question,
				"answer":     entry.Answer,
			},
		})
		if err != nil {
			log.Printf("[faq] index entry %d failed: %v", entry.ID, err)
			continue
		}
		count++
	}
	log.Printf("[faq] indexed %d entries", count)
	return rows.Err()
}

// SearchSemantic queries the vector index. Entries belonging to another
// tenant are filtered out; "general" entries are visible to everyone.
func (r *FAQRepository) SearchSemantic(ctx context.Context, query, companyID string) (entities.FAQResult, error) {
	total := r.collection.Count()
	if total == 0 {
		return entities.FAQResult{Answer: FAQNoAnswer}, nil
	}
	limit := 5
	if total < limit {
		limit = total
	}

	results, err := r.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return entities.FAQResult{}, fmt.Errorf("faq query: %w", err)
	}

	var out entities.FAQResult
	for _, res := range results {
		owner := res.Metadata["company_id"]
		if owner != "" && owner != "general" && companyID != "" && owner != companyID {
			continue
		}
		if res.Similarity < minFAQSimilarity {
			continue
		}
		entry := entities.FAQEntry{
			CompanyID: owner,
			Category:  res.Metadata["category"],
			Question:  res.Metadata["question"],
			Answer:    res.Metadata["answer"],
		}
		if out.Answer == "" {
			out.Answer = entry.Answer
		} else {
			out.SuggestedQuestions = append(out.SuggestedQuestions, entry.Question)
		}
		out.Sources = append(out.Sources, entry)
	}
	if out.Answer == "" {
		out.Answer = FAQNoAnswer
	}
	return out, nil
}

// SearchKeyword scores knowledge-base sections against the query and returns
// the best section body, or the no-answer fallback.
func (r *FAQRepository) SearchKeyword(ctx context.Context, query string) (string, error) {
	rows, err := r.db.Query(ctx, "SELECT title, body FROM knowledge_base")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	bestScore := 0.0
	bestBody := ""
	for rows.Next() {
		var title, body string
		if err := rows.Scan(&title, &body); err != nil {
			return "", err
		}
		if score := scoreSection(query, title, body); score > bestScore {
			bestScore = score
			bestBody = body
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if bestScore > 0 {
		return bestBody, nil
	}
	return FAQNoAnswer, nil
}

// scoreSection weighs a knowledge-base section against a query: full-query
// hits in the title count most, then full-query hits in the body, then
// per-word hits.
func scoreSection(query, title, body string) float64 {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	lowerTitle := strings.ToLower(title)
	lowerBody := strings.ToLower(body)

	score := 0.0
	if lowerTitle != "" && strings.Contains(lowerTitle, lowerQuery) {
		score += 2
	}
	if strings.Contains(lowerBody, lowerQuery) {
		score += 1
	}
	for _, word := range strings.Fields(lowerQuery) {
		if strings.Contains(lowerTitle, word) {
			score += 0.5
		}
		if strings.Contains(lowerBody, word) {
			score += 0.2
		}
	}
	return score
}
