package catalog

// schema is applied on every Open; CREATE TABLE IF NOT EXISTS makes it
// idempotent against an already-initialized store file.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
	source_id     TEXT PRIMARY KEY,
	source_type   TEXT NOT NULL DEFAULT '',
	last_shown_at INTEGER,
	times_shown   INTEGER NOT NULL DEFAULT 0 CHECK(times_shown >= 0)
);

CREATE TABLE IF NOT EXISTS images (
	filepath      TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	source_id     TEXT REFERENCES sources(source_id) ON DELETE SET NULL,
	width         INTEGER,
	height        INTEGER,
	aspect_ratio  REAL,
	file_mtime    INTEGER NOT NULL DEFAULT 0,
	is_favorite   INTEGER NOT NULL DEFAULT 0,
	times_shown   INTEGER NOT NULL DEFAULT 0 CHECK(times_shown >= 0),
	last_shown_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_images_source ON images(source_id);

CREATE TABLE IF NOT EXISTS palettes (
	filepath          TEXT PRIMARY KEY REFERENCES images(filepath) ON DELETE CASCADE,
	color0            TEXT NOT NULL CHECK(color0 GLOB '#[0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f]'),
	color1            TEXT,
	color2            TEXT,
	color3            TEXT,
	color4            TEXT,
	color5            TEXT,
	color6            TEXT,
	color7            TEXT,
	color8            TEXT,
	color9            TEXT,
	color10           TEXT,
	color11           TEXT,
	color12           TEXT,
	color13           TEXT,
	color14           TEXT,
	color15           TEXT,
	avg_hue           REAL NOT NULL DEFAULT 0,
	avg_saturation    REAL NOT NULL DEFAULT 0,
	avg_lightness     REAL NOT NULL DEFAULT 0,
	color_temperature REAL NOT NULL DEFAULT 0,
	extracted_at      INTEGER
);

CREATE TABLE IF NOT EXISTS display_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	filepath   TEXT NOT NULL,
	shown_at   INTEGER NOT NULL,
	source_id  TEXT
);

CREATE INDEX IF NOT EXISTS idx_display_events_filepath ON display_events(filepath);
`
