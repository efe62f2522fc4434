package database

// authTables are created by Migrate; the list is echoed by /api/admin/migrate.
var authTables = []string{"user", "session", "account", "verification"}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS "user" (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	emailVerified INTEGER NOT NULL DEFAULT 0,
	image TEXT,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS session (
	id TEXT PRIMARY KEY,
	expiresAt TEXT NOT NULL,
	token TEXT NOT NULL UNIQUE,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL,
	ipAddress TEXT,
	userAgent TEXT,
	userId TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS session_user_id_idx ON session (userId);
CREATE TABLE IF NOT EXISTS account (
	id TEXT PRIMARY KEY,
	accountId TEXT NOT NULL,
	providerId TEXT NOT NULL,
	userId TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	accessToken TEXT,
	refreshToken TEXT,
	idToken TEXT,
	accessTokenExpiresAt TEXT,
	refreshTokenExpiresAt TEXT,
	scope TEXT,
	password TEXT,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS account_user_id_idx ON account (userId);
CREATE TABLE IF NOT EXISTS verification (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	value TEXT NOT NULL,
	expiresAt TEXT NOT NULL,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_identifier_idx ON verification (identifier);

CREATE TABLE IF NOT EXISTS buildings (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	normalized_address TEXT NOT NULL,
	neighborhood TEXT,
	lat REAL,
	lng REAL,
	management_company TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS buildings_normalized_address_idx ON buildings (normalized_address);
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	building_id TEXT NOT NULL REFERENCES buildings(id),
	unit TEXT,
	title TEXT,
	description TEXT,
	price INTEGER,
	beds INTEGER,
	baths REAL,
	sqft INTEGER,
	status TEXT,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	url TEXT,
	posted_at TEXT,
	last_seen_at TEXT,
	seq INTEGER,
	saves_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS listings_source_source_id_idx ON listings (source, source_id);
CREATE INDEX IF NOT EXISTS listings_building_id_idx ON listings (building_id);
CREATE TABLE IF NOT EXISTS listing_meta (
	listing_id TEXT PRIMARY KEY REFERENCES listings(id),
	tags_json TEXT NOT NULL DEFAULT '[]',
	map_x TEXT,
	map_y TEXT
);
CREATE TABLE IF NOT EXISTS listing_photos (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	url TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS listing_photos_listing_id_idx ON listing_photos (listing_id);
CREATE TABLE IF NOT EXISTS listing_saves (
	user_id TEXT NOT NULL REFERENCES "user"(id),
	listing_id TEXT NOT NULL REFERENCES listings(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, listing_id)
);
CREATE INDEX IF NOT EXISTS listing_saves_listing_id_idx ON listing_saves (listing_id);
CREATE TABLE IF NOT EXISTS public_records (
	id TEXT PRIMARY KEY,
	building_id TEXT NOT NULL REFERENCES buildings(id),
	record_type TEXT NOT NULL,
	source TEXT NOT NULL,
	record_date TEXT,
	status TEXT,
	summary TEXT,
	metadata_json TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS public_records_building_id_idx ON public_records (building_id);

CREATE TABLE IF NOT EXISTS sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	neighborhood TEXT NOT NULL DEFAULT '',
	last_fetched TEXT,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS "user" (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	emailVerified INTEGER NOT NULL DEFAULT 0,
	image TEXT,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS session (
	id TEXT PRIMARY KEY,
	expiresAt TEXT NOT NULL,
	token TEXT NOT NULL UNIQUE,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL,
	ipAddress TEXT,
	userAgent TEXT,
	userId TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS session_user_id_idx ON session (userId);
CREATE TABLE IF NOT EXISTS account (
	id TEXT PRIMARY KEY,
	accountId TEXT NOT NULL,
	providerId TEXT NOT NULL,
	userId TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	accessToken TEXT,
	refreshToken TEXT,
	idToken TEXT,
	accessTokenExpiresAt TEXT,
	refreshTokenExpiresAt TEXT,
	scope TEXT,
	password TEXT,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS account_user_id_idx ON account (userId);
CREATE TABLE IF NOT EXISTS verification (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	value TEXT NOT NULL,
	expiresAt TEXT NOT NULL,
	createdAt TEXT NOT NULL,
	updatedAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_identifier_idx ON verification (identifier);

CREATE TABLE IF NOT EXISTS buildings (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	normalized_address TEXT NOT NULL,
	neighborhood TEXT,
	lat DOUBLE PRECISION,
	lng DOUBLE PRECISION,
	management_company TEXT,
	created_at TEXT NOT NULL DEFAULT (now()::text),
	updated_at TEXT NOT NULL DEFAULT (now()::text)
);
CREATE INDEX IF NOT EXISTS buildings_normalized_address_idx ON buildings (normalized_address);
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	building_id TEXT NOT NULL REFERENCES buildings(id),
	unit TEXT,
	title TEXT,
	description TEXT,
	price INTEGER,
	beds INTEGER,
	baths DOUBLE PRECISION,
	sqft INTEGER,
	status TEXT,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	url TEXT,
	posted_at TEXT,
	last_seen_at TEXT,
	saves_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (now()::text),
	updated_at TEXT NOT NULL DEFAULT (now()::text)
);
CREATE UNIQUE INDEX IF NOT EXISTS listings_source_source_id_idx ON listings (source, source_id);
CREATE INDEX IF NOT EXISTS listings_building_id_idx ON listings (building_id);
ALTER TABLE listings ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
CREATE INDEX IF NOT EXISTS listings_seq_idx ON listings (seq);
CREATE TABLE IF NOT EXISTS listing_meta (
	listing_id TEXT PRIMARY KEY REFERENCES listings(id),
	tags_json TEXT NOT NULL DEFAULT '[]',
	map_x TEXT,
	map_y TEXT
);
CREATE TABLE IF NOT EXISTS listing_photos (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	url TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (now()::text)
);
CREATE INDEX IF NOT EXISTS listing_photos_listing_id_idx ON listing_photos (listing_id);
CREATE TABLE IF NOT EXISTS listing_saves (
	user_id TEXT NOT NULL REFERENCES "user"(id),
	listing_id TEXT NOT NULL REFERENCES listings(id),
	created_at TEXT NOT NULL DEFAULT (now()::text),
	PRIMARY KEY (user_id, listing_id)
);
CREATE INDEX IF NOT EXISTS listing_saves_listing_id_idx ON listing_saves (listing_id);
CREATE TABLE IF NOT EXISTS public_records (
	id TEXT PRIMARY KEY,
	building_id TEXT NOT NULL REFERENCES buildings(id),
	record_type TEXT NOT NULL,
	source TEXT NOT NULL,
	record_date TEXT,
	status TEXT,
	summary TEXT,
	metadata_json TEXT,
	created_at TEXT NOT NULL DEFAULT (now()::text)
);
CREATE INDEX IF NOT EXISTS public_records_building_id_idx ON public_records (building_id);

CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	neighborhood TEXT NOT NULL DEFAULT '',
	last_fetched TEXT,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
