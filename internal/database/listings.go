package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/sftu/internal/model"
)

const listingColumns = `
	SELECT l.id, COALESCE(l.title, ''), b.address, COALESCE(l.unit, ''), COALESCE(b.neighborhood, ''),
		COALESCE(l.price, 0), COALESCE(l.beds, 0), COALESCE(l.baths, 0), COALESCE(l.sqft, 0),
		COALESCE(b.management_company, ''),
		l.saves_count + (SELECT COUNT(*) FROM listing_saves s WHERE s.listing_id = l.id),
		(SELECT COUNT(*) FROM public_records r WHERE r.building_id = b.id AND r.status = 'open'),
		COALESCE((SELECT MAX(r.record_date) FROM public_records r WHERE r.building_id = b.id AND r.record_type = 'inspection'), ''),
		COALESCE((SELECT r.summary FROM public_records r WHERE r.building_id = b.id AND r.summary IS NOT NULL
			ORDER BY r.record_date DESC, r.created_at DESC LIMIT 1), ''),
		COALESCE(m.tags_json, '[]'), COALESCE(m.map_x, ''), COALESCE(m.map_y, ''),
		l.source, l.source_id, COALESCE(l.url, '')
	FROM listings l
	JOIN buildings b ON b.id = l.building_id
	LEFT JOIN listing_meta m ON m.listing_id = l.id`

// listingOrder is insertion order. Rows written in the same instant share
// timestamps, so seq is the only reliable key.
const listingOrder = ` ORDER BY l.seq ASC`

// ListListings returns active listings oldest first, the order they were
// added to the catalog.
func (db *DB) ListListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := db.query(ctx, listingColumns+` WHERE COALESCE(l.status, 'active') = 'active'`+listingOrder)
	if err != nil {
		return nil, err
	}
	listings, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	return listings, db.attachPhotos(ctx, listings)
}

// GetListing returns one listing by id.
func (db *DB) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	rows, err := db.query(ctx, listingColumns+` WHERE l.id = ?`, id)
	if err != nil {
		return nil, err
	}
	listings, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, ErrNotFound
	}
	if err := db.attachPhotos(ctx, listings); err != nil {
		return nil, err
	}
	return &listings[0], nil
}

// SavedListings returns the listings a user has saved, most recent save first.
func (db *DB) SavedListings(ctx context.Context, userID string) ([]model.Listing, error) {
	rows, err := db.query(ctx, listingColumns+`
	JOIN listing_saves sv ON sv.listing_id = l.id
	WHERE sv.user_id = ?
	ORDER BY sv.created_at DESC, l.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	listings, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	return listings, db.attachPhotos(ctx, listings)
}

// scanListings consumes and closes rows.
func scanListings(rows *sql.Rows) ([]model.Listing, error) {
	defer rows.Close()
	var listings []model.Listing
	for rows.Next() {
		var (
			l        model.Listing
			street   string
			unit     string
			tagsJSON string
		)
		if err := rows.Scan(&l.ID, &l.Title, &street, &unit, &l.Neighborhood,
			&l.Price, &l.Beds, &l.Baths, &l.Sqft,
			&l.Management, &l.SavesCount,
			&l.RecordSummary.OpenViolations, &l.RecordSummary.LastInspection, &l.RecordSummary.Note,
			&tagsJSON, &l.Map.X, &l.Map.Y,
			&l.Source, &l.SourceID, &l.URL); err != nil {
			return nil, err
		}
		l.Address = joinAddress(street, unit)
		if err := json.Unmarshal([]byte(tagsJSON), &l.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", l.ID, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// attachPhotos loads photos for listings in one query. It runs after the
// listing rows are closed so it works with a single SQLite connection.
func (db *DB) attachPhotos(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	index := make(map[string]int, len(listings))
	args := make([]any, 0, len(listings))
	for i, l := range listings {
		index[l.ID] = i
		args = append(args, l.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := db.query(ctx,
		"SELECT listing_id, url FROM listing_photos WHERE listing_id IN ("+placeholders+") ORDER BY listing_id, sort_order",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			listings[i].Photos = append(listings[i].Photos, url)
		}
	}
	return rows.Err()
}

// splitAddress separates "151 Townsend St, Unit 610" into street and unit.
func splitAddress(address string) (street, unit string) {
	street, unit, _ = strings.Cut(address, ", ")
	return strings.TrimSpace(street), strings.TrimSpace(unit)
}

func joinAddress(street, unit string) string {
	if unit == "" {
		return street
	}
	return street + ", " + unit
}

func normalizeAddress(street string) string {
	return strings.Join(strings.Fields(strings.ToLower(street)), " ")
}

// UpsertListing inserts or updates a listing keyed by (source, source_id),
// creating its building on first sight. It reports whether the listing was new.
// An empty ID is derived deterministically from the source key.
func (db *DB) UpsertListing(ctx context.Context, l *model.Listing) (bool, error) {
	if l.Source == "" || l.SourceID == "" {
		return false, fmt.Errorf("upsert listing %q: source and source id are required", l.ID)
	}
	street, unit := splitAddress(l.Address)
	now := formatTime(time.Now())

	t, err := db.begin(ctx)
	if err != nil {
		return false, err
	}
	defer t.Rollback()

	buildingID, err := t.ensureBuilding(ctx, street, l.Neighborhood, l.Management, now)
	if err != nil {
		return false, fmt.Errorf("ensure building: %w", err)
	}

	var existingID string
	err = t.queryRow(ctx, "SELECT id FROM listings WHERE source = ? AND source_id = ?", l.Source, l.SourceID).Scan(&existingID)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return false, err
	}

	switch {
	case !isNew:
		l.ID = existingID
		_, err = t.exec(ctx, `
			UPDATE listings SET building_id = ?, unit = ?, title = ?, price = ?, beds = ?, baths = ?, sqft = ?,
				url = ?, status = 'active', last_seen_at = ?, updated_at = ?
			WHERE id = ?`,
			buildingID, nullString(unit), l.Title, l.Price, l.Beds, l.Baths, l.Sqft,
			nullString(l.URL), now, now, l.ID)
	default:
		if l.ID == "" {
			l.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(l.Source+":"+l.SourceID)).String()
		}
		_, err = t.exec(ctx, `
			INSERT INTO listings (id, building_id, unit, title, price, beds, baths, sqft, status,
				source, source_id, url, posted_at, last_seen_at, saves_count, created_at, updated_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, ?, ?, ?, `+t.db.dialect.nextListingSeq+`)`,
			l.ID, buildingID, nullString(unit), l.Title, l.Price, l.Beds, l.Baths, l.Sqft,
			l.Source, l.SourceID, nullString(l.URL), now, now, l.SavesCount, now, now)
	}
	if err != nil {
		return false, fmt.Errorf("write listing %s: %w", l.ID, err)
	}

	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return false, err
	}
	if _, err := t.exec(ctx, `
		INSERT INTO listing_meta (listing_id, tags_json, map_x, map_y) VALUES (?, ?, ?, ?)
		ON CONFLICT (listing_id) DO UPDATE SET tags_json = excluded.tags_json, map_x = excluded.map_x, map_y = excluded.map_y`,
		l.ID, string(tagsJSON), nullString(l.Map.X), nullString(l.Map.Y)); err != nil {
		return false, fmt.Errorf("write listing meta: %w", err)
	}

	if _, err := t.exec(ctx, "DELETE FROM listing_photos WHERE listing_id = ?", l.ID); err != nil {
		return false, err
	}
	for i, photo := range l.Photos {
		if _, err := t.exec(ctx,
			"INSERT INTO listing_photos (id, listing_id, url, sort_order, created_at) VALUES (?, ?, ?, ?, ?)",
			uuid.NewString(), l.ID, photo, i, now); err != nil {
			return false, fmt.Errorf("write photo: %w", err)
		}
	}

	return isNew, t.Commit()
}

func (t *tx) ensureBuilding(ctx context.Context, street, neighborhood, management, now string) (string, error) {
	normalized := normalizeAddress(street)
	var id string
	err := t.queryRow(ctx, "SELECT id FROM buildings WHERE normalized_address = ?", normalized).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		id = uuid.NewString()
		_, err = t.exec(ctx, `
			INSERT INTO buildings (id, address, normalized_address, neighborhood, management_company, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, street, normalized, nullString(neighborhood), nullString(management), now, now)
		return id, err
	}
	if err != nil {
		return "", err
	}
	// Keep the freshest non-empty values.
	_, err = t.exec(ctx, `
		UPDATE buildings SET
			neighborhood = COALESCE(?, neighborhood),
			management_company = COALESCE(?, management_company),
			updated_at = ?
		WHERE id = ?`,
		nullString(neighborhood), nullString(management), now, id)
	return id, err
}

// SetRecordSummary replaces the summary-sourced public records of the
// listing's building with one inspection record and one open violation
// record per open violation.
func (db *DB) SetRecordSummary(ctx context.Context, listingID string, rs model.RecordSummary) error {
	if rs.OpenViolations < 0 {
		return fmt.Errorf("record summary for %s: negative open violations", listingID)
	}
	t, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer t.Rollback()

	var buildingID string
	err = t.queryRow(ctx, "SELECT building_id FROM listings WHERE id = ?", listingID).Scan(&buildingID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := t.exec(ctx, "DELETE FROM public_records WHERE building_id = ? AND source = 'summary'", buildingID); err != nil {
		return err
	}

	now := formatTime(time.Now())
	insert := `INSERT INTO public_records (id, building_id, record_type, source, record_date, status, summary, created_at)
		VALUES (?, ?, ?, 'summary', ?, ?, ?, ?)`
	for i := 0; i < rs.OpenViolations; i++ {
		if _, err := t.exec(ctx, insert, uuid.NewString(), buildingID, "violation",
			nullString(rs.LastInspection), "open", nullString(""), now); err != nil {
			return err
		}
	}
	if rs.LastInspection != "" || rs.Note != "" {
		if _, err := t.exec(ctx, insert, uuid.NewString(), buildingID, "inspection",
			nullString(rs.LastInspection), "closed", nullString(rs.Note), now); err != nil {
			return err
		}
	}
	return t.Commit()
}

// SaveListing records that a user saved a listing. Saving twice is a no-op.
func (db *DB) SaveListing(ctx context.Context, userID, listingID string) error {
	var exists int
	err := db.queryRow(ctx, "SELECT 1 FROM listings WHERE id = ?", listingID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = db.exec(ctx, `
		INSERT INTO listing_saves (user_id, listing_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID, formatTime(time.Now()))
	return err
}

// UnsaveListing removes a save.
func (db *DB) UnsaveListing(ctx context.Context, userID, listingID string) error {
	_, err := db.exec(ctx, "DELETE FROM listing_saves WHERE user_id = ? AND listing_id = ?", userID, listingID)
	return err
}

// CountSaved returns how many listings a user has saved.
func (db *DB) CountSaved(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.queryRow(ctx, "SELECT COUNT(*) FROM listing_saves WHERE user_id = ?", userID).Scan(&n)
	return n, err
}
