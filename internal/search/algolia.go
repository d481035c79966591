// Package search maintains the optional Algolia borrower index. Indexing is
// best-effort: Firestore stays the source of truth and an Algolia failure
// never fails a pipeline run.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v4/algolia/search"
	log "github.com/sirupsen/logrus"

	"github.com/loanlens/loanlens/internal/model"
)

// Config holds Algolia configuration.
type Config struct {
	AppID     string
	APIKey    string
	IndexName string
}

// Hit is one borrower search result from the index.
type Hit struct {
	BorrowerID string  `json:"borrower_id"`
	DocumentID string  `json:"document_id"`
	FullName   string  `json:"full_name"`
	Confidence float64 `json:"confidence_score"`
}

// BorrowerIndex is the slice of the search backend the service uses.
type BorrowerIndex interface {
	// IndexBorrower upserts one borrower. Errors are returned for logging
	// but callers treat them as non-fatal.
	IndexBorrower(ctx context.Context, b *model.Borrower) error
	// DeleteBorrowers removes the given borrower ids, e.g. on document
	// deletion.
	DeleteBorrowers(ctx context.Context, ids []string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// AlgoliaClient implements BorrowerIndex on the Algolia v4 API.
type AlgoliaClient struct {
	client    *search.APIClient
	indexName string
}

// NewAlgoliaClient creates an Algolia-backed borrower index.
func NewAlgoliaClient(cfg Config) (*AlgoliaClient, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("algolia AppID and APIKey are required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "loanlens_borrowers"
	}

	client, err := search.NewClient(cfg.AppID, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating algolia client: %w", err)
	}
	return &AlgoliaClient{client: client, indexName: cfg.IndexName}, nil
}

// IndexBorrower upserts the borrower record. Only searchable and displayable
// fields go in; SSN hashes and raw source snippets stay out of the index.
func (c *AlgoliaClient) IndexBorrower(ctx context.Context, b *model.Borrower) error {
	accountNumbers := make([]string, 0, len(b.AccountNumbers))
	for _, a := range b.AccountNumbers {
		accountNumbers = append(accountNumbers, a.Number)
	}
	employers := make([]string, 0, len(b.IncomeRecords))
	for _, r := range b.IncomeRecords {
		if r.Employer != "" {
			employers = append(employers, r.Employer)
		}
	}

	body := map[string]any{
		"objectID":        b.ID,
		"DocumentId":      b.DocumentID,
		"FullName":        b.FullName,
		"AccountNumbers":  accountNumbers,
		"Employers":       employers,
		"ConfidenceScore": b.ConfidenceScore,
		"NeedsReview":     b.NeedsReview,
		"CreatedAtUnix":   b.CreatedAt.Unix(),
	}

	_, err := c.client.SaveObject(c.client.NewApiSaveObjectRequest(c.indexName, body))
	if err != nil {
		return fmt.Errorf("algolia save object: %w", err)
	}
	return nil
}

// DeleteBorrowers removes the given object ids from the index.
func (c *AlgoliaClient) DeleteBorrowers(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := c.client.DeleteObject(c.client.NewApiDeleteObjectRequest(c.indexName, id)); err != nil {
			return fmt.Errorf("algolia delete object %s: %w", id, err)
		}
	}
	return nil
}

// Search runs a full-text query over names, employers, and account numbers.
func (c *AlgoliaClient) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	params := search.SearchParamsObjectAsSearchParams(
		search.NewSearchParamsObject().
			SetQuery(query).
			SetHitsPerPage(int32(limit)),
	)
	resp, err := c.client.SearchSingleIndex(c.client.NewApiSearchSingleIndexRequest(c.indexName).WithSearchParams(params))
	if err != nil {
		return nil, fmt.Errorf("algolia search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		hit := hitFromProps(raw.AdditionalProperties)
		if hit.BorrowerID == "" {
			log.Warn("algolia: skipping hit with no objectID")
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func hitFromProps(props map[string]any) Hit {
	var hit Hit
	if v, ok := props["objectID"].(string); ok {
		hit.BorrowerID = v
	}
	if v, ok := props["DocumentId"].(string); ok {
		hit.DocumentID = v
	}
	if v, ok := props["FullName"].(string); ok {
		hit.FullName = strings.TrimSpace(v)
	}
	if v, ok := props["ConfidenceScore"].(float64); ok {
		hit.Confidence = v
	}
	return hit
}
