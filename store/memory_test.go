package store

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s := NewMemoryStore()
		if err := s.Migrate(context.Background(), DefaultSchema()); err != nil {
			t.Fatalf("Migrate error: %v", err)
		}
		return s
	})
}
