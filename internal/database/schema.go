package database

const schema = `
CREATE TABLE content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	poster_url TEXT NOT NULL DEFAULT '',
	backdrop_url TEXT NOT NULL DEFAULT '',
	trailer_url TEXT NOT NULL DEFAULT '',
	trailer_id TEXT NOT NULL DEFAULT '',
	release_date TEXT NOT NULL DEFAULT '',
	cast_list TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL DEFAULT 0,
	label TEXT NOT NULL DEFAULT 'CONTENT',
	image_urls TEXT NOT NULL DEFAULT '[]',
	recommended_ids TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_content_external_type ON content(external_id, type);
CREATE INDEX idx_content_external_id ON content(external_id);
CREATE INDEX idx_content_type_label ON content(type, label);

CREATE TABLE genre (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_genre_external_type ON genre(external_id, content_type);

CREATE TABLE content_genre (
	content_id INTEGER NOT NULL,
	genre_id INTEGER NOT NULL,
	PRIMARY KEY (content_id, genre_id),
	FOREIGN KEY (content_id) REFERENCES content(id) ON DELETE CASCADE,
	FOREIGN KEY (genre_id) REFERENCES genre(id) ON DELETE CASCADE
);

CREATE INDEX idx_content_genre_genre ON content_genre(genre_id);

CREATE TABLE fetch_log (
	key TEXT PRIMARY KEY,
	last_fetched_at TEXT NOT NULL
);

CREATE TABLE recommendation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	content_type TEXT NOT NULL,
	titles TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);
`

// migrations contains incremental schema changes
// Each migration is applied in order based on the current user_version
// migrations[0] is empty because version 0 uses the base schema
var migrations = []string{
	"",
}
