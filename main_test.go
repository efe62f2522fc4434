package main

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/model"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "sftu.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeedIfEmptySeedsFreshDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := seedIfEmpty(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("seedIfEmpty: %v", err)
	}
	got, err := db.ListListings(ctx)
	if err != nil {
		t.Fatalf("ListListings: %v", err)
	}
	refs := catalog.ReferenceListings()
	if len(got) != len(refs) {
		t.Fatalf("got %d listings, want %d", len(got), len(refs))
	}
	for i := range refs {
		if got[i].ID != refs[i].ID {
			t.Errorf("listing %d = %s, want %s", i, got[i].ID, refs[i].ID)
		}
	}
}

func TestSeedIfEmptyLeavesPopulatedDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	own := model.Listing{
		Title: "Garden flat", Address: "12 Noe St", Neighborhood: "Castro",
		Price: 3100, Source: "feed", SourceID: "garden-1",
	}
	if _, err := db.UpsertListing(ctx, &own); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}

	if err := seedIfEmpty(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("seedIfEmpty: %v", err)
	}
	got, err := db.ListListings(ctx)
	if err != nil {
		t.Fatalf("ListListings: %v", err)
	}
	if len(got) != 1 || got[0].ID != own.ID {
		t.Errorf("got %d listings, want only %s", len(got), own.ID)
	}
}

func TestSeedIfEmptyRunsOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := seedIfEmpty(ctx, db, zap.NewNop()); err != nil {
			t.Fatalf("seedIfEmpty #%d: %v", i+1, err)
		}
	}
	got, err := db.ListListings(ctx)
	if err != nil {
		t.Fatalf("ListListings: %v", err)
	}
	if want := len(catalog.ReferenceListings()); len(got) != want {
		t.Errorf("got %d listings, want %d", len(got), want)
	}
}

func TestInitPollingInterval(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		config int
		want   int
	}{
		{"config applies to fresh database", "", 45, 45},
		{"stored value wins over config", "60", 45, 60},
		{"zero config falls back to floor", "", 0, model.MinPollingIntervalMinutes},
		{"config below floor is clamped on read", "", 5, model.MinPollingIntervalMinutes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			if tt.stored != "" {
				if err := db.SetSetting(ctx, model.SettingPollingInterval, tt.stored); err != nil {
					t.Fatalf("SetSetting: %v", err)
				}
			}

			if err := initPollingInterval(ctx, db, tt.config); err != nil {
				t.Fatalf("initPollingInterval: %v", err)
			}
			got, err := db.GetPollingInterval(ctx)
			if err != nil {
				t.Fatalf("GetPollingInterval: %v", err)
			}
			if got != tt.want {
				t.Errorf("interval = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInitPollingIntervalKeepsFirstValueAcrossRestarts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := initPollingInterval(ctx, db, 30); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := initPollingInterval(ctx, db, 90); err != nil {
		t.Fatalf("second start: %v", err)
	}
	got, err := db.GetPollingInterval(ctx)
	if err != nil {
		t.Fatalf("GetPollingInterval: %v", err)
	}
	if got != 30 {
		t.Errorf("interval = %d, want 30", got)
	}
}
