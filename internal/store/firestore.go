package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loanlens/loanlens/internal/model"
)

const (
	documentsCollection = "documents"
	borrowersCollection = "borrowers"
)

// FirestoreStore implements Store on Firestore. Documents and borrowers live
// in two top-level collections; borrowers carry a document_id field instead
// of a subcollection path so they can be queried across documents.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an existing Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	// Hash uniqueness is a query, not a transaction: the upload path checks
	// the hash before creating, and a rare racing double-create of identical
	// content is harmless because processing is idempotent.
	if _, err := s.GetDocumentByHash(ctx, doc.FileHash); err == nil {
		return ErrDuplicateHash
	} else if err != ErrNotFound {
		return err
	}
	if _, err := s.client.Collection(documentsCollection).Doc(doc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	snap, err := s.client.Collection(documentsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	var doc model.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}

func (s *FirestoreStore) GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error) {
	snaps, err := s.client.Collection(documentsCollection).
		Where("file_hash", "==", hash).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query document by hash: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	var doc model.Document
	if err := snaps[0].DataTo(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}

func (s *FirestoreStore) UpdateDocument(ctx context.Context, doc *model.Document) error {
	if _, err := s.GetDocument(ctx, doc.ID); err != nil {
		return err
	}
	if _, err := s.client.Collection(documentsCollection).Doc(doc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListDocuments(ctx context.Context, limit, offset int) ([]*model.Document, error) {
	limit, offset = clampPage(limit, offset)
	snaps, err := s.client.Collection(documentsCollection).
		OrderBy("created_at", firestore.Desc).
		Offset(offset).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]*model.Document, 0, len(snaps))
	for _, snap := range snaps {
		var doc model.Document
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (s *FirestoreStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	snaps, err := s.client.Collection(borrowersCollection).
		Where("document_id", "==", id).
		Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("query borrowers for delete: %w", err)
	}

	bw := s.client.BulkWriter(ctx)
	for _, snap := range snaps {
		if _, err := bw.Delete(snap.Ref); err != nil {
			return fmt.Errorf("delete borrower %s: %w", snap.Ref.ID, err)
		}
	}
	if _, err := bw.Delete(s.client.Collection(documentsCollection).Doc(id)); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	bw.End()
	return nil
}

func (s *FirestoreStore) CreateBorrower(ctx context.Context, b *model.Borrower) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Flatten()
	if _, err := s.client.Collection(borrowersCollection).Doc(b.ID).Set(ctx, b); err != nil {
		return fmt.Errorf("create borrower: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetBorrower(ctx context.Context, id string) (*model.Borrower, error) {
	snap, err := s.client.Collection(borrowersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get borrower: %w", err)
	}
	var b model.Borrower
	if err := snap.DataTo(&b); err != nil {
		return nil, fmt.Errorf("parse borrower: %w", err)
	}
	return &b, nil
}

func (s *FirestoreStore) ListBorrowers(ctx context.Context, limit, offset int) ([]*model.Borrower, error) {
	limit, offset = clampPage(limit, offset)
	query := s.client.Collection(borrowersCollection).
		OrderBy("created_at", firestore.Desc).
		Offset(offset).
		Limit(limit)
	return s.collectBorrowers(ctx, query)
}

func (s *FirestoreStore) ListBorrowersByDocument(ctx context.Context, documentID string) ([]*model.Borrower, error) {
	query := s.client.Collection(borrowersCollection).
		Where("document_id", "==", documentID)
	return s.collectBorrowers(ctx, query)
}

func (s *FirestoreStore) SearchBorrowers(ctx context.Context, name, accountNumber string, limit, offset int) ([]*model.Borrower, error) {
	limit, offset = clampPage(limit, offset)
	query := s.client.Collection(borrowersCollection).Query

	if name != "" {
		// Prefix range over the derived lowercase field;  sorts after
		// every code point Firestore stores.
		prefix := strings.ToLower(strings.TrimSpace(name))
		query = query.
			Where("full_name_lower", ">=", prefix).
			Where("full_name_lower", "<", prefix+"").
			OrderBy("full_name_lower", firestore.Asc)
	}
	if accountNumber != "" {
		query = query.Where("account_numbers_flat", "array-contains", accountNumber)
	}
	query = query.Offset(offset).Limit(limit)
	return s.collectBorrowers(ctx, query)
}

func (s *FirestoreStore) collectBorrowers(ctx context.Context, query firestore.Query) ([]*model.Borrower, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query borrowers: %w", err)
	}
	out := make([]*model.Borrower, 0, len(snaps))
	for _, snap := range snaps {
		var b model.Borrower
		if err := snap.DataTo(&b); err != nil {
			return nil, fmt.Errorf("parse borrower: %w", err)
		}
		out = append(out, &b)
	}
	return out, nil
}
