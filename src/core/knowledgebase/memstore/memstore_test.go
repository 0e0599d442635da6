package memstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"govrag/src/core/knowledgebase"
	"govrag/src/core/knowledgebase/memstore"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("Create() returned empty session id")
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil || got == nil {
		t.Fatalf("Get() = %v, %v, want session", got, err)
	}

	unknown, err := store.Get(ctx, "missing")
	if err != nil || unknown != nil {
		t.Errorf("Get(missing) = %v, %v, want nil, nil", unknown, err)
	}

	ok, err := store.Delete(ctx, sess.SessionID)
	if err != nil || !ok {
		t.Errorf("Delete() = %v, %v, want true, nil", ok, err)
	}
	ok, _ = store.Delete(ctx, sess.SessionID)
	if ok {
		t.Errorf("Delete() twice = true, want false")
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()
	sess, _ := store.Create(ctx)

	got, _ := store.Get(ctx, sess.SessionID)
	got.Append(knowledgebase.ChatMessage{Role: knowledgebase.RoleUser, Content: "hi", Timestamp: time.Now()})

	again, _ := store.Get(ctx, sess.SessionID)
	if len(again.Messages) != 0 {
		t.Fatalf("unsaved mutation leaked into store, messages = %d", len(again.Messages))
	}

	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	again, _ = store.Get(ctx, sess.SessionID)
	if len(again.Messages) != 1 {
		t.Errorf("Save() messages = %d, want 1", len(again.Messages))
	}
}

func TestStoreSweep(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	store := memstore.NewStore(memstore.WithClock(func() time.Time { return now }))

	old, _ := store.Create(ctx)
	now = start.Add(20 * time.Minute)
	fresh, _ := store.Create(ctx)

	removed := store.Sweep(start.Add(35*time.Minute), 30*time.Minute)
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if got, _ := store.Get(ctx, old.SessionID); got != nil {
		t.Errorf("Sweep() kept expired session")
	}
	if got, _ := store.Get(ctx, fresh.SessionID); got == nil {
		t.Errorf("Sweep() removed live session")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.Create(ctx)
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			sess.Append(knowledgebase.ChatMessage{Role: knowledgebase.RoleUser, Content: fmt.Sprint(i), Timestamp: time.Now()})
			_ = store.Save(ctx, sess)
			_, _ = store.Get(ctx, sess.SessionID)
			if i%2 == 0 {
				_, _ = store.Delete(ctx, sess.SessionID)
			}
		}(i)
	}
	wg.Wait()

	if got := store.Len(); got != 25 {
		t.Errorf("Len() = %d, want 25", got)
	}
}
