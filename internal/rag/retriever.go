package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

// Retriever does semantic search over the knowledge base: embed the query,
// rank documents by cosine distance, format the hits for model consumption.
type Retriever struct {
	pool     *pgxpool.Pool
	embedder models.Embedder
	logger   zerolog.Logger
}

// NewRetriever creates a retriever over the given pool and embedder.
func NewRetriever(pool *pgxpool.Pool, embedder models.Embedder) *Retriever {
	return &Retriever{
		pool:     pool,
		embedder: embedder,
		logger:   config.NewLogger("rag"),
	}
}

// Search returns the topK documents most similar to the query, best first.
// docType restricts results to one document type when non-empty.
func (r *Retriever) Search(ctx context.Context, query string, topK int, docType string) ([]models.SearchResult, error) {
	if topK < 1 {
		topK = 5
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec := pgvector.NewVector(embedding)

	sql := `
		SELECT content, doc_type, 1 - (embedding <=> $1) AS score
		FROM knowledge_documents
		WHERE embedding IS NOT NULL`
	args := []any{vec, topK}
	if docType != "" {
		sql += " AND doc_type = $3"
		args = append(args, docType)
	}
	sql += `
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var res models.SearchResult
		if err := rows.Scan(&res.Content, &res.DocType, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	r.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Knowledge base searched")
	return results, nil
}

// RetrieveContext searches and formats the hits as a numbered list the
// model can cite. The search_context tool wraps this.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, topK int) (string, error) {
	results, err := r.Search(ctx, query, topK, "")
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

// AddDocument embeds and stores one document in the knowledge base.
func (r *Retriever) AddDocument(ctx context.Context, content, docType string) error {
	embedding, err := r.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO knowledge_documents (id, content, doc_type, embedding, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), content, docType, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// Disabled is a stand-in retriever for deployments without a knowledge
// base. Searches succeed with an explanatory message so the model moves on.
type Disabled struct{}

// RetrieveContext reports the knowledge base as unconfigured.
func (Disabled) RetrieveContext(ctx context.Context, query string, topK int) (string, error) {
	return "The knowledge base is not configured; proceed with the data already gathered.", nil
}

// FormatResults renders search hits as a numbered, score-annotated list.
func FormatResults(results []models.SearchResult) string {
	if len(results) == 0 {
		return "No relevant context found for this query."
	}
	lines := make([]string, 0, len(results))
	for i, res := range results {
		lines = append(lines, fmt.Sprintf("%d. [score=%.2f] %s", i+1, res.Score, res.Content))
	}
	return strings.Join(lines, "\n")
}
