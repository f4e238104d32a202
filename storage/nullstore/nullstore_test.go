package nullstore

import (
	"context"
	"errors"
	"testing"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/storage"
)

func TestLoadCursorOnFreshBackendReturnsErrNoCursor(t *testing.T) {
	b := New()
	if _, err := b.LoadCursor(context.Background(), "cur"); !errors.Is(err, storage.ErrNoCursor) {
		t.Fatalf("LoadCursor = %v, want ErrNoCursor", err)
	}
}

func TestCommitPersistsCursorAcrossTransactions(t *testing.T) {
	b := New()
	ctx := context.Background()

	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	crumbs := breadcrumbs.New()
	crumbs.Track(chainevent.Point{Slot: 100})
	if err := tx.SaveCursor(ctx, "cur", crumbs); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	loaded, err := b.LoadCursor(ctx, "cur")
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	front, ok := loaded.Front()
	if !ok || front.Slot != 100 {
		t.Fatalf("loaded front = %+v, %v, want slot 100", front, ok)
	}
}

func TestRollbackDiscardsPendingCursor(t *testing.T) {
	b := New()
	ctx := context.Background()

	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	crumbs := breadcrumbs.New()
	crumbs.Track(chainevent.Point{Slot: 5})
	if err := tx.SaveCursor(ctx, "cur", crumbs); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, err := b.LoadCursor(ctx, "cur"); !errors.Is(err, storage.ErrNoCursor) {
		t.Fatalf("LoadCursor after rollback = %v, want ErrNoCursor", err)
	}
}

func TestApplyAlwaysDiscardsMutation(t *testing.T) {
	b := New()
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord(nil)
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestKindIsNone(t *testing.T) {
	if New().Kind() != storage.KindNone {
		t.Fatalf("Kind() = %v, want KindNone", New().Kind())
	}
}
