package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/newscrawler/internal/storage"
)

func TestBlobStoreGetObjectReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "example.com/abc/result.md", "text/markdown", bytes.NewReader([]byte("content")))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://example.com/abc/result.md" {
		t.Fatalf("unexpected uri %s", uri)
	}

	got, err := store.GetObject(context.Background(), "example.com/abc/result.md")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	got[0] = 'C'
	if stored := string(store.data["example.com/abc/result.md"]); stored != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Puts() != 1 || store.Len() != 1 {
		t.Fatalf("unexpected counters puts=%d len=%d", store.Puts(), store.Len())
	}
}

func TestBlobStoreMissingAndFailingReads(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.GetObject(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("disk on fire")
	store.FailReads("broken", boom)
	if _, err := store.GetObject(context.Background(), "broken"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
