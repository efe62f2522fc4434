package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bryan-buckman/sftu/internal/model"
)

func TestListListingsOrderSurvivesEqualTimestamps(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "order.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	// IDs sort opposite to insertion order.
	ids := []string{"zz-first", "mm-second", "aa-third"}
	for i, id := range ids {
		l := model.Listing{
			ID: id, Title: id, Address: "1" + id + " Valencia St",
			Source: "seed", SourceID: id, Price: 3000 + i,
		}
		if _, err := db.UpsertListing(ctx, &l); err != nil {
			t.Fatalf("UpsertListing(%s): %v", id, err)
		}
	}
	if _, err := db.exec(ctx, "UPDATE listings SET posted_at = ?, created_at = ?",
		"2025-01-01T00:00:00.000000000Z", "2025-01-01T00:00:00.000000000Z"); err != nil {
		t.Fatalf("flatten timestamps: %v", err)
	}

	// Updating an existing row keeps its place.
	again := model.Listing{ID: "zz-first", Title: "renamed", Address: "1zz-first Valencia St", Source: "seed", SourceID: "zz-first"}
	if _, err := db.UpsertListing(ctx, &again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := db.ListListings(ctx)
	if err != nil {
		t.Fatalf("ListListings: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("got %d listings, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i].ID != id {
			t.Errorf("listing %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMigrateNumbersLegacyListings(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "legacy.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	for _, id := range []string{"b-one", "a-two"} {
		l := model.Listing{ID: id, Title: id, Address: "2" + id + " Folsom St", Source: "seed", SourceID: id}
		if _, err := db.UpsertListing(ctx, &l); err != nil {
			t.Fatalf("UpsertListing(%s): %v", id, err)
		}
	}
	if _, err := db.exec(ctx, "UPDATE listings SET seq = NULL"); err != nil {
		t.Fatalf("clear seq: %v", err)
	}
	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	var missing int
	if err := db.queryRow(ctx, "SELECT COUNT(*) FROM listings WHERE seq IS NULL").Scan(&missing); err != nil {
		t.Fatalf("count: %v", err)
	}
	if missing != 0 {
		t.Errorf("%d listings left without seq", missing)
	}
	got, err := db.ListListings(ctx)
	if err != nil {
		t.Fatalf("ListListings: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b-one" || got[1].ID != "a-two" {
		t.Errorf("order = %v", listingIDs(got))
	}
}

func listingIDs(ls []model.Listing) []string {
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}
