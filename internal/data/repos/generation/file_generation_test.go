package generation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
)

func testKey() types.GenerationKey {
	return types.GenerationKey{
		FileType:   types.FileTypeD1,
		AgencyCode: "097",
		AgencyRole: types.RoleAwarding,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func newGen(key types.GenerationKey, requestedAt time.Time) *types.FileGeneration {
	return &types.FileGeneration{
		ID:          uuid.New(),
		RequestDate: requestedAt,
		FileType:    key.FileType,
		AgencyCode:  key.AgencyCode,
		AgencyRole:  key.AgencyRole,
		StartDate:   key.Start,
		EndDate:     key.End,
	}
}

func TestFindCached_IgnoresUncachedRows(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFileGenerationRepo(db, testutil.Logger(t))

	key := testKey()
	if _, err := repo.Create(dbc, newGen(key, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.FindCached(dbc, key)
	if err != nil {
		t.Fatalf("find cached: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no cached row, got %v", got.ID)
	}
}

func TestMarkCached_TakesOverCachedSlot(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFileGenerationRepo(db, testutil.Logger(t))

	key := testKey()
	first := newGen(key, time.Now().Add(-time.Hour))
	second := newGen(key, time.Now())
	for _, gen := range []*types.FileGeneration{first, second} {
		if _, err := repo.Create(dbc, gen); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := repo.MarkCached(dbc, first.ID, "generated/a.csv", 10); err != nil {
		t.Fatalf("mark first: %v", err)
	}
	if err := repo.MarkCached(dbc, second.ID, "generated/b.csv", 20); err != nil {
		t.Fatalf("mark second: %v", err)
	}

	cached, err := repo.FindCached(dbc, key)
	if err != nil {
		t.Fatalf("find cached: %v", err)
	}
	if cached == nil || cached.ID != second.ID {
		t.Fatalf("expected latest completion to hold the slot, got %+v", cached)
	}
	stale, err := repo.GetByID(dbc, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if stale.IsCached {
		t.Fatal("first row should have been un-cached")
	}
}

func TestFindPending_OldestUncachedWins(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFileGenerationRepo(db, testutil.Logger(t))

	key := testKey()
	older := newGen(key, time.Now().Add(-time.Minute))
	newer := newGen(key, time.Now())
	for _, gen := range []*types.FileGeneration{newer, older} {
		if _, err := repo.Create(dbc, gen); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	pending, err := repo.FindPending(dbc, key)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if pending == nil || pending.ID != older.ID {
		t.Fatalf("expected oldest pending row, got %+v", pending)
	}

	// A produced row no longer counts as pending.
	if err := repo.MarkCached(dbc, older.ID, "generated/a.csv", 5); err != nil {
		t.Fatalf("mark cached: %v", err)
	}
	pending, err = repo.FindPending(dbc, key)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if pending == nil || pending.ID != newer.ID {
		t.Fatalf("expected newer row after first completed, got %+v", pending)
	}
}

func TestUncache(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFileGenerationRepo(db, testutil.Logger(t))

	key := testKey()
	gen := newGen(key, time.Now())
	if _, err := repo.Create(dbc, gen); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkCached(dbc, gen.ID, "generated/a.csv", 1); err != nil {
		t.Fatalf("mark cached: %v", err)
	}
	if err := repo.Uncache(dbc, gen.ID); err != nil {
		t.Fatalf("uncache: %v", err)
	}
	cached, err := repo.FindCached(dbc, key)
	if err != nil {
		t.Fatalf("find cached: %v", err)
	}
	if cached != nil {
		t.Fatalf("expected no cached row after uncache, got %v", cached.ID)
	}
}
