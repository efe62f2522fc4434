package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/bryan-buckman/sftu/internal/model"
)

// --- Source Methods ---

// GetSources returns all ingestion sources ordered by neighborhood and title.
func (db *DB) GetSources(ctx context.Context) ([]model.Source, error) {
	rows, err := db.query(ctx, `
		SELECT id, title, url, neighborhood, COALESCE(last_fetched, ''), last_error
		FROM sources ORDER BY neighborhood, title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var s model.Source
		var lastFetched string
		if err := rows.Scan(&s.ID, &s.Title, &s.URL, &s.Neighborhood, &lastFetched, &s.LastError); err != nil {
			return nil, err
		}
		if lastFetched != "" {
			s.LastFetched = parseTime(lastFetched)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// GetOrCreateSource finds a source by URL, or creates it. Returns the ID and
// whether it was created.
func (db *DB) GetOrCreateSource(ctx context.Context, title, url, neighborhood string) (int64, bool, error) {
	var id int64
	err := db.queryRow(ctx, "SELECT id FROM sources WHERE url = ?", url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = db.queryRow(ctx,
			"INSERT INTO sources (title, url, neighborhood) VALUES (?, ?, ?) RETURNING id",
			title, url, neighborhood).Scan(&id)
		return id, err == nil, err
	}
	return id, false, err
}

// UpdateSourceFetched records a successful fetch and clears the last error.
func (db *DB) UpdateSourceFetched(ctx context.Context, sourceID int64, t time.Time) error {
	_, err := db.exec(ctx, "UPDATE sources SET last_fetched = ?, last_error = '' WHERE id = ?", formatTime(t), sourceID)
	return err
}

// UpdateSourceError records the last fetch error for a source.
func (db *DB) UpdateSourceError(ctx context.Context, sourceID int64, errMsg string) error {
	_, err := db.exec(ctx, "UPDATE sources SET last_error = ? WHERE id = ?", errMsg, sourceID)
	return err
}

// --- Settings Methods ---

// GetSetting retrieves a setting value. Missing keys return ErrNotFound.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := db.queryRow(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.exec(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetPollingInterval returns the polling interval in minutes, with a minimum of 15.
func (db *DB) GetPollingInterval(ctx context.Context) (int, error) {
	val, err := db.GetSetting(ctx, model.SettingPollingInterval)
	if errors.Is(err, ErrNotFound) {
		return model.MinPollingIntervalMinutes, nil
	}
	if err != nil {
		return 0, err
	}
	mins, err := strconv.Atoi(val)
	if err != nil || mins < model.MinPollingIntervalMinutes {
		mins = model.MinPollingIntervalMinutes
	}
	return mins, nil
}
