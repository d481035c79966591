// Package store persists documents and borrowers. Two implementations exist:
// Firestore for production and an in-memory store for local development and
// tests.
package store

import (
	"context"
	"errors"

	"github.com/loanlens/loanlens/internal/model"
)

var (
	// ErrNotFound is returned for lookups of ids that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateHash is returned when a document with the same content
	// hash already exists.
	ErrDuplicateHash = errors.New("document with this content hash already exists")
)

// Store defines the persistence operations used by the service.
type Store interface {
	// Document operations. CreateDocument enforces content-hash uniqueness.
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	ListDocuments(ctx context.Context, limit, offset int) ([]*model.Document, error)
	// DeleteDocument cascades: the document's borrowers (and their embedded
	// children) go with it.
	DeleteDocument(ctx context.Context, id string) error

	// Borrower operations. Children are embedded in the borrower, so a
	// single write is the transactional unit and a single read returns the
	// full aggregate.
	CreateBorrower(ctx context.Context, b *model.Borrower) error
	GetBorrower(ctx context.Context, id string) (*model.Borrower, error)
	ListBorrowers(ctx context.Context, limit, offset int) ([]*model.Borrower, error)
	ListBorrowersByDocument(ctx context.Context, documentID string) ([]*model.Borrower, error)
	// SearchBorrowers filters by case-insensitive name prefix and/or exact
	// account number. Empty filters match everything.
	SearchBorrowers(ctx context.Context, name, accountNumber string, limit, offset int) ([]*model.Borrower, error)
}

// clampPage normalizes limit/offset query parameters.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
