package blob

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	uri, err := s.Put(ctx, "abc123", "application/pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if uri != "mem://abc123" {
		t.Errorf("Put uri = %q, want mem://abc123", uri)
	}

	data, err := s.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("Get = %q, want %%PDF-1.4", data)
	}

	if err := s.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "abc123"); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	payload := []byte("original")
	if _, err := s.Put(ctx, "k", "text/plain", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload[0] = 'X'

	data, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("Get = %q, want stored copy unaffected by caller mutation", data)
	}
}
