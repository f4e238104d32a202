package storage

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/finalize"
	"github.com/chainlayer/chainlayer/pipeline"
)

// fakeBackend/fakeTx let storage_test.go drive Engine's commit protocol
// without depending on a concrete backend package, and let tests inject
// failures at each of the protocol's steps.
type fakeBackend struct {
	kind       Kind
	crumbs     *breadcrumbs.Breadcrumbs
	beginErr   error
	txs        []*fakeTx
	applyErr   error
	saveErr    error
	commitErr  error
}

func (b *fakeBackend) Kind() Kind { return b.kind }

func (b *fakeBackend) Begin(ctx context.Context) (Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	tx := &fakeTx{backend: b}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func (b *fakeBackend) LoadCursor(ctx context.Context, cursorName string) (*breadcrumbs.Breadcrumbs, error) {
	if b.crumbs == nil {
		return nil, ErrNoCursor
	}
	return b.crumbs, nil
}

type fakeTx struct {
	backend    *fakeBackend
	applied    []chainevent.Record
	saved      *breadcrumbs.Breadcrumbs
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Apply(ctx context.Context, rec chainevent.Record) error {
	if t.backend.applyErr != nil {
		return t.backend.applyErr
	}
	t.applied = append(t.applied, rec)
	return nil
}

func (t *fakeTx) SaveCursor(ctx context.Context, cursorName string, b *breadcrumbs.Breadcrumbs) error {
	if t.backend.saveErr != nil {
		return t.backend.saveErr
	}
	t.saved = b
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.backend.commitErr != nil {
		return t.backend.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func newEngine(b Backend, fc finalize.Config) (*Engine, *pipeline.Chan[chainevent.Event]) {
	in := pipeline.NewChan[chainevent.Event]()
	e := &Engine{Backend: b, CursorName: "cur", Finalize: fc, Inbound: in, Log: zap.NewNop()}
	return e, in
}

func TestBootstrapWithNoPersistedCursorStartsEmpty(t *testing.T) {
	e, _ := newEngine(&fakeBackend{kind: KindNone}, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !e.crumbs.Empty() {
		t.Fatal("expected an empty breadcrumbs when no cursor was persisted")
	}
}

func TestExecuteIgnoresResetAndRecordlessEvents(t *testing.T) {
	b := &fakeBackend{kind: KindNone}
	e, _ := newEngine(b, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := e.Execute(context.Background(), chainevent.NewReset(chainevent.Point{Slot: 1})); err != nil {
		t.Fatalf("Execute(Reset): %v", err)
	}
	if len(b.txs) != 0 {
		t.Fatalf("Reset must not begin a transaction, got %d", len(b.txs))
	}
}

func TestExecuteCommitsApplyAndAdvancesCursor(t *testing.T) {
	b := &fakeBackend{kind: KindNone}
	e, _ := newEngine(b, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	ev := chainevent.NewApply(chainevent.Point{Slot: 10}, chainevent.NewStatementsRecord([]string{"x"}))
	if err := e.Execute(context.Background(), ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(b.txs) != 1 || !b.txs[0].committed {
		t.Fatal("expected exactly one committed transaction")
	}
	front, ok := e.crumbs.Front()
	if !ok || front.Slot != 10 {
		t.Fatalf("crumbs front = %+v, %v, want slot 10", front, ok)
	}
}

func TestExecuteSkipsApplyForEmptyRecordButStillAdvancesCursor(t *testing.T) {
	b := &fakeBackend{kind: KindNone}
	e, _ := newEngine(b, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	ev := chainevent.NewApply(chainevent.Point{Slot: 11}, chainevent.NewStatementsRecord(nil))
	if err := e.Execute(context.Background(), ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(b.txs[0].applied) != 0 {
		t.Fatal("an empty record must not reach Tx.Apply")
	}
	front, ok := e.crumbs.Front()
	if !ok || front.Slot != 11 {
		t.Fatalf("crumbs front = %+v, %v, want slot 11 even with an empty record", front, ok)
	}
}

func TestExecuteRollsBackOnApplyError(t *testing.T) {
	b := &fakeBackend{kind: KindNone, applyErr: errors.New("boom")}
	e, _ := newEngine(b, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	ev := chainevent.NewApply(chainevent.Point{Slot: 1}, chainevent.NewStatementsRecord([]string{"x"}))
	if err := e.Execute(context.Background(), ev); err == nil {
		t.Fatal("expected the apply error to propagate")
	}
	if !b.txs[0].rolledBack {
		t.Fatal("an apply failure must roll back the transaction")
	}
}

func TestExecuteRollsBackOnSaveCursorError(t *testing.T) {
	b := &fakeBackend{kind: KindNone, saveErr: errors.New("boom")}
	e, _ := newEngine(b, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	ev := chainevent.NewApply(chainevent.Point{Slot: 1}, chainevent.NewStatementsRecord(nil))
	if err := e.Execute(context.Background(), ev); err == nil {
		t.Fatal("expected the save-cursor error to propagate")
	}
	if !b.txs[0].rolledBack {
		t.Fatal("a save-cursor failure must roll back the transaction")
	}
}

func TestExecuteMarksDoneWhenFinalizeMatches(t *testing.T) {
	b := &fakeBackend{kind: KindNone}
	e, _ := newEngine(b, finalize.AtOrAfterSlot(5))
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	ev := chainevent.NewApply(chainevent.Point{Slot: 5}, chainevent.NewStatementsRecord(nil))
	if err := e.Execute(context.Background(), ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res, err := e.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if res.Signal != pipeline.SignalDone {
		t.Fatalf("Schedule after a finalize match = %+v, want SignalDone", res)
	}
}

func TestScheduleReturnsDoneOnClosedInbound(t *testing.T) {
	e, in := newEngine(&fakeBackend{kind: KindNone}, finalize.None())
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	in.Close()
	res, err := e.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if res.Signal != pipeline.SignalDone {
		t.Fatalf("Schedule on a drained closed channel = %+v, want SignalDone", res)
	}
}
