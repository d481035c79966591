package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/loanlens/loanlens/internal/model"
)

// MemoryStore implements Store with in-memory maps. It backs local
// development and tests; semantics mirror the Firestore implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*model.Document
	borrowers map[string]*model.Borrower
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*model.Document),
		borrowers: make(map[string]*model.Borrower),
	}
}

func (m *MemoryStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	for _, existing := range m.documents {
		if existing.FileHash == doc.FileHash {
			return ErrDuplicateHash
		}
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MemoryStore) GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.documents {
		if doc.FileHash == hash {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateDocument(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[doc.ID]; !ok {
		return ErrNotFound
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context, limit, offset int) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = clampPage(limit, offset)
	docs := make([]*model.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return window(docs, limit, offset), nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	for bid, b := range m.borrowers {
		if b.DocumentID == id {
			delete(m.borrowers, bid)
		}
	}
	return nil
}

func (m *MemoryStore) CreateBorrower(ctx context.Context, b *model.Borrower) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Flatten()
	cp := *b
	m.borrowers[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBorrower(ctx context.Context, id string) (*model.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.borrowers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListBorrowers(ctx context.Context, limit, offset int) ([]*model.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = clampPage(limit, offset)
	return window(m.sortedBorrowers(func(*model.Borrower) bool { return true }), limit, offset), nil
}

func (m *MemoryStore) ListBorrowersByDocument(ctx context.Context, documentID string) ([]*model.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedBorrowers(func(b *model.Borrower) bool {
		return b.DocumentID == documentID
	}), nil
}

func (m *MemoryStore) SearchBorrowers(ctx context.Context, name, accountNumber string, limit, offset int) ([]*model.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = clampPage(limit, offset)
	namePrefix := strings.ToLower(strings.TrimSpace(name))
	matches := m.sortedBorrowers(func(b *model.Borrower) bool {
		if namePrefix != "" && !strings.HasPrefix(b.FullNameLower, namePrefix) {
			return false
		}
		if accountNumber != "" {
			found := false
			for _, n := range b.AccountNumbersFlat {
				if n == accountNumber {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	})
	return window(matches, limit, offset), nil
}

func (m *MemoryStore) sortedBorrowers(keep func(*model.Borrower) bool) []*model.Borrower {
	out := make([]*model.Borrower, 0, len(m.borrowers))
	for _, b := range m.borrowers {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
