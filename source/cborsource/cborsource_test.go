package cborsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chainlayer/chainlayer/chainevent"
)

type wireTxFixture struct {
	Hash    []byte   `cbor:"0,keyasint"`
	Inputs  []string `cbor:"1,keyasint"`
	Outputs [][]byte `cbor:"2,keyasint"`
}

type wireBlockFixture struct {
	Era          uint8           `cbor:"0,keyasint"`
	Slot         uint64          `cbor:"1,keyasint"`
	Hash         []byte          `cbor:"2,keyasint"`
	Height       uint64          `cbor:"3,keyasint"`
	Transactions []wireTxFixture `cbor:"4,keyasint"`
}

func writeFixture(t *testing.T, dir, name string, slot uint64) {
	t.Helper()
	wb := wireBlockFixture{Slot: slot, Hash: []byte("h" + name), Height: slot}
	raw, err := cbor.Marshal(wb)
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestNextBatchDecodesFilesInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "002-block.cbor", 2)
	writeFixture(t, dir, "001-block.cbor", 1)
	writeFixture(t, dir, "003-block.cbor", 3)

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events, hasMore, err := a.NextBatch(context.Background(), chainevent.Origin(), 10)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if hasMore {
		t.Fatal("expected all three files consumed in one batch")
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []uint64{1, 2, 3} {
		if events[i].Point.Slot != want {
			t.Fatalf("events[%d].Point.Slot = %d, want %d (sorted filename order)", i, events[i].Point.Slot, want)
		}
	}
}

func TestNextBatchHonorsMaxItems(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.cbor", 1)
	writeFixture(t, dir, "b.cbor", 2)
	writeFixture(t, dir, "c.cbor", 3)

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events, hasMore, err := a.NextBatch(context.Background(), chainevent.Origin(), 2)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(events) != 2 || !hasMore {
		t.Fatalf("got %d events, hasMore=%v, want 2 events and hasMore=true", len(events), hasMore)
	}
}

func TestFilenameContainingUndoProducesUndoEvent(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "001-undo.cbor", 5)

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events, _, err := a.NextBatch(context.Background(), chainevent.Origin(), 10)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(events) != 1 || events[0].Direction != chainevent.Undo {
		t.Fatalf("got %+v, want a single Undo event", events)
	}
}

func TestNearTipOnceFilesExhausted(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.cbor", 1)

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	near, err := a.NearTip(context.Background(), chainevent.Origin())
	if err != nil || near {
		t.Fatalf("NearTip before reading = %v, %v, want false", near, err)
	}
	if _, _, err := a.NextBatch(context.Background(), chainevent.Origin(), 10); err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	near, err = a.NearTip(context.Background(), chainevent.Origin())
	if err != nil || !near {
		t.Fatalf("NearTip after exhausting files = %v, %v, want true", near, err)
	}
}

func TestIntersectPrefersFirstCandidate(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := chainevent.NewPoint(7, []byte("h"))
	got, err := a.Intersect(context.Background(), []chainevent.Point{want, chainevent.Origin()})
	if err != nil {
		t.Fatalf("Intersect: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("Intersect = %v, want %v", got, want)
	}
}

func TestIntersectDefaultsToOriginWithNoCandidates(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := a.Intersect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Intersect: %v", err)
	}
	if !got.IsOrigin() {
		t.Fatalf("Intersect with no candidates = %v, want Origin", got)
	}
}

func TestNextTipBlocksUntilContextCanceled(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.NextTip(ctx, chainevent.Origin()); err == nil {
		t.Fatal("NextTip on an exhausted replay source must observe context cancellation")
	}
}
