package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainlayer/chainlayer/breadcrumbs"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/crdt"
	"github.com/chainlayer/chainlayer/storage"
)

// fakeClient implements the narrow client interface without a live server.
type fakeClient struct {
	getData   []byte
	getErr    error
	pipeline  func(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	pipelined bool
	lastPipe  *fakePipeliner
}

func (f *fakeClient) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	f.pipelined = true
	if f.pipeline != nil {
		return f.pipeline(ctx, fn)
	}
	p := &fakePipeliner{}
	f.lastPipe = p
	return nil, fn(p)
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
	} else {
		cmd.SetVal(string(f.getData))
	}
	return cmd
}

func (f *fakeClient) Close() error { return nil }

// fakePipeliner embeds the interface (nil) and overrides only the command
// methods commandOp actually issues; any other call would panic on the nil
// embedded value, which is fine since the tests below never trigger one.
type fakePipeliner struct {
	redis.Pipeliner
	calls []string
}

func (p *fakePipeliner) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("SAdd(%s,%v)", key, members))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("SRem(%s,%v)", key, members))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) ZIncrBy(ctx context.Context, key string, increment float64, member string) *redis.FloatCmd {
	p.calls = append(p.calls, fmt.Sprintf("ZIncrBy(%s,%v,%s)", key, increment, member))
	return redis.NewFloatCmd(ctx)
}

func (p *fakePipeliner) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("ZRemRangeByScore(%s,%s,%s)", key, min, max))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	p.calls = append(p.calls, fmt.Sprintf("Set(%s,%v)", key, value))
	return redis.NewStatusCmd(ctx)
}

func (p *fakePipeliner) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("ZAdd(%s,%v)", key, members))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("IncrBy(%s,%d)", key, value))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("HIncrBy(%s,%s,%d)", key, field, incr))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("HSet(%s,%v)", key, values))
	return redis.NewIntCmd(ctx)
}

func (p *fakePipeliner) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	p.calls = append(p.calls, fmt.Sprintf("HDel(%s,%v)", key, fields))
	return redis.NewIntCmd(ctx)
}

func TestLoadCursorMapsRedisNilToErrNoCursor(t *testing.T) {
	b := New(nil)
	b.Client = &fakeClient{getErr: redis.Nil}
	if _, err := b.LoadCursor(context.Background(), "cur"); !errors.Is(err, storage.ErrNoCursor) {
		t.Fatalf("LoadCursor = %v, want ErrNoCursor", err)
	}
}

func TestLoadCursorDecodesPersistedData(t *testing.T) {
	crumbs := breadcrumbs.New()
	crumbs.Track(chainevent.Point{Slot: 9})
	data, err := crumbs.ToData()
	if err != nil {
		t.Fatalf("ToData: %v", err)
	}
	b := New(nil)
	b.Client = &fakeClient{getData: data}
	loaded, err := b.LoadCursor(context.Background(), "cur")
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	front, ok := loaded.Front()
	if !ok || front.Slot != 9 {
		t.Fatalf("front = %+v, %v, want slot 9", front, ok)
	}
}

func TestCommitWithNoOpsSkipsPipelining(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fc.pipelined {
		t.Fatal("an event with no ops must not call TxPipelined")
	}
}

func TestApplyRejectsWrongRecordKind(t *testing.T) {
	b := New(nil)
	b.Client = &fakeClient{}
	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewStatementsRecord([]string{"not sql"})
	if err := tx.Apply(context.Background(), rec); err == nil {
		t.Fatal("expected an error applying a SQL-statements record to a Redis backend")
	}
}

func TestCommitFlushesCommandsAndCursorTogether(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{
		{Kind: crdt.SortedSetAdd, Set: "heights", Member: "1", Delta: 1},
		{Kind: crdt.PNCounter, Key: "count", Delta: 1},
	})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	crumbs := breadcrumbs.New()
	crumbs.Track(chainevent.Point{Slot: 2})
	if err := tx.SaveCursor(ctx, "cur", crumbs); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !fc.pipelined {
		t.Fatal("Commit with ops must flush through TxPipelined")
	}
	want := []string{
		"ZIncrBy(heights,1,1)",
		"IncrBy(count,1)",
		formatCursorSetCall(t, "cur", crumbs),
	}
	if got := fc.lastPipe.calls; !equalCalls(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

// formatCursorSetCall mirrors fakePipeliner.Set's own formatting so the
// expected cursor SET call matches byte-for-byte, including how %v
// renders the encoded []byte payload.
func formatCursorSetCall(t *testing.T, key string, crumbs *breadcrumbs.Breadcrumbs) string {
	t.Helper()
	data, err := crumbs.ToData()
	if err != nil {
		t.Fatalf("ToData: %v", err)
	}
	return fmt.Sprintf("Set(%s,%v)", key, data)
}

func equalCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// TestCommitOrdersCommandsThenCursor exercises spec §8 scenario 4: a
// SetAdd followed by a SetRemove on the same member must flush as
// SADD then SREM, in that order, with the cursor SET trailing both
// inside the same TxPipelined MULTI/EXEC.
func TestCommitOrdersCommandsThenCursor(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{
		{Kind: crdt.SetAdd, Set: "k", Member: "a"},
		{Kind: crdt.SetRemove, Set: "k", Member: "a"},
	})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	crumbs := breadcrumbs.New()
	crumbs.Track(chainevent.Point{Slot: 1})
	if err := tx.SaveCursor(ctx, "cur", crumbs); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []string{
		"SAdd(k,[a])",
		"SRem(k,[a])",
		formatCursorSetCall(t, "cur", crumbs),
	}
	if got := fc.lastPipe.calls; !equalCalls(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

// TestTwoPhaseSetRemoveAddsToTombstoneSet pins the fix for the bug where
// TwoPhaseSetRemove was collapsed into plain SetRemove: it must never
// SREM the primary set, only SADD the member into its tombstone set.
func TestTwoPhaseSetRemoveAddsToTombstoneSet(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{
		{Kind: crdt.TwoPhaseSetRemove, Set: "members", Member: "bob"},
	})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []string{"SAdd(members.ts,[bob])"}
	if got := fc.lastPipe.calls; !equalCalls(got, want) {
		t.Fatalf("calls = %v, want %v (TwoPhaseSetRemove must never touch the primary set)", got, want)
	}
}

// TestLastWriteWinsUsesZAddWithTimestampScore pins the fix for the bug
// where LastWriteWins was collapsed into AnyWriteWins's plain SET,
// silently dropping the timestamp. It must ZADD with the timestamp as
// score, distinct from AnyWriteWins's SET.
func TestLastWriteWinsUsesZAddWithTimestampScore(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{
		{Kind: crdt.LastWriteWins, Key: "profile", Value: crdt.StringValue("v2"), Timestamp: 42},
	})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []string{"ZAdd(profile,[{42 v2}])"}
	if got := fc.lastPipe.calls; !equalCalls(got, want) {
		t.Fatalf("calls = %v, want %v (LastWriteWins must ZADD with the timestamp as score, not SET)", got, want)
	}
}

// TestAnyWriteWinsUsesPlainSet confirms AnyWriteWins kept its original
// plain SET behavior after LastWriteWins was split out on its own.
func TestAnyWriteWinsUsesPlainSet(t *testing.T) {
	fc := &fakeClient{}
	b := New(nil)
	b.Client = fc
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{
		{Kind: crdt.AnyWriteWins, Key: "profile", Value: crdt.StringValue("v2"), Timestamp: 42},
	})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []string{"Set(profile,v2)"}
	if got := fc.lastPipe.calls; !equalCalls(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestRollbackClearsBufferedOps(t *testing.T) {
	b := New(nil)
	b.Client = &fakeClient{}
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{{Kind: crdt.PNCounter, Key: "count", Delta: 1}})
	if err := tx.Apply(ctx, rec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit after rollback: %v", err)
	}
	if b.Client.(*fakeClient).pipelined {
		t.Fatal("Commit after Rollback must have nothing left to flush")
	}
}

func TestApplyRejectsUnhandledCommandKind(t *testing.T) {
	b := New(nil)
	b.Client = &fakeClient{}
	ctx := context.Background()
	tx, err := b.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec := chainevent.NewCommandsRecord([]crdt.Command{{Kind: crdt.Kind(255)}})
	if err := tx.Apply(ctx, rec); err == nil {
		t.Fatal("expected an error for an unhandled command kind")
	}
}
