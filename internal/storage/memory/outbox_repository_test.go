package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

func enqueueInTx(t *testing.T, store *Store, msgs ...domain.OutboxMessage) {
	t.Helper()
	err := store.InTx(context.Background(), func(tx domain.Tx) error {
		for _, msg := range msgs {
			if _, err := tx.Enqueue(context.Background(), msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	store := NewStore()
	enqueueInTx(t, store,
		domain.OutboxMessage{ID: "m-1", AggregateType: "table", AggregateID: "t-1", EventType: domain.EventTableSeated},
		domain.OutboxMessage{ID: "m-2", AggregateType: "table", AggregateID: "t-1", EventType: domain.EventTableFinished},
		domain.OutboxMessage{AggregateType: "reservation", AggregateID: "r-1", EventType: domain.EventReservationCreated},
	)

	pending, err := store.Outbox().PullPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != "m-1" || pending[1].ID != "m-2" {
		t.Fatalf("expected messages in enqueue order, got %s, %s", pending[0].ID, pending[1].ID)
	}

	all := store.PendingEvents()
	if len(all) != 3 || all[2].ID == "" {
		t.Fatalf("expected generated id for third message, got %+v", all)
	}
}

func TestOutboxRepository_RolledBackTxEnqueuesNothing(t *testing.T) {
	store := NewStore()
	err := store.InTx(context.Background(), func(tx domain.Tx) error {
		if _, err := tx.Enqueue(context.Background(), domain.OutboxMessage{EventType: "x"}); err != nil {
			return err
		}
		return domain.ErrTableOccupied
	})
	if err == nil {
		t.Fatal("expected tx error")
	}
	if got := len(store.PendingEvents()); got != 0 {
		t.Fatalf("expected no pending events, got %d", got)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	store := NewStore()
	enqueueInTx(t, store,
		domain.OutboxMessage{ID: "sent"},
		domain.OutboxMessage{ID: "failed"},
	)
	repo := store.Outbox()
	ctx := context.Background()

	if err := repo.MarkSent(ctx, "sent"); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "failed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	now := time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })

	stats, err := store.Outbox().Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats for empty outbox: %+v", stats)
	}

	enqueueInTx(t, store, domain.OutboxMessage{ID: "a"}, domain.OutboxMessage{ID: "b"})

	stats, err = store.Outbox().Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if !stats.OldestPendingAt.Equal(now) {
		t.Fatalf("unexpected oldest pending time: %v", stats.OldestPendingAt)
	}
}

func TestOutboxRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewStore().Outbox().PullPending(ctx, 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestOutboxRepository_DeleteSentBefore(t *testing.T) {
	now := time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now })
	enqueueInTx(t, store,
		domain.OutboxMessage{ID: "old-1"},
		domain.OutboxMessage{ID: "old-2"},
		domain.OutboxMessage{ID: "failed"},
		domain.OutboxMessage{ID: "pending"},
	)
	ctx := context.Background()
	repo := store.Outbox()
	cleaner, ok := repo.(domain.OutboxCleaner)
	if !ok {
		t.Fatal("memory outbox must support cleanup")
	}

	for _, id := range []string{"old-1", "old-2"} {
		if err := repo.MarkSent(ctx, id); err != nil {
			t.Fatalf("mark sent %s: %v", id, err)
		}
	}
	if err := repo.MarkFailed(ctx, "failed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	deleted, err := cleaner.DeleteSentBefore(ctx, now, 10)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("records marked at the cutoff must stay, deleted %d", deleted)
	}

	deleted, err = cleaner.DeleteSentBefore(ctx, now.Add(time.Second), 1)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected limit to cap deletion at 1, got %d", deleted)
	}
	deleted, err = cleaner.DeleteSentBefore(ctx, now.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected the second sent record to be deleted, got %d", deleted)
	}

	if got := len(store.PendingEvents()); got != 1 {
		t.Fatalf("pending record must survive cleanup, got %d", got)
	}
	if err := repo.MarkSent(ctx, "old-1"); err == nil {
		t.Fatal("deleted record must no longer be addressable")
	}
}
