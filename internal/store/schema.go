package store

// Schema DDL, applied idempotently at startup. Any relational store with
// upsert-by-unique-key and JSON columns would do; Postgres is what the
// deployment runs.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS municipalities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		website_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS meetings (
		id BIGSERIAL PRIMARY KEY,
		municipality_id BIGINT NOT NULL REFERENCES municipalities(id),
		date DATE NOT NULL,
		meeting_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'scheduled',
		agenda_url TEXT NOT NULL DEFAULT '',
		minutes_url TEXT NOT NULL DEFAULT '',
		video_url TEXT NOT NULL DEFAULT '',
		raw_correspondence TEXT,
		correspondence_letters INT NOT NULL DEFAULT 0,
		correspondence_pages INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (municipality_id, date, meeting_type)
	)`,
	`CREATE TABLE IF NOT EXISTS agenda_items (
		id BIGSERIAL PRIMARY KEY,
		meeting_id BIGINT NOT NULL REFERENCES meetings(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		raw_content TEXT NOT NULL DEFAULT '',
		decision TEXT,
		summary_simple TEXT,
		summary_standard TEXT,
		summary_detailed TEXT,
		impact TEXT,
		category TEXT,
		categories JSONB,
		tags JSONB,
		is_significant BOOLEAN NOT NULL DEFAULT FALSE,
		bylaw_number TEXT,
		headline TEXT,
		topic TEXT,
		key_stats JSONB,
		community_signal JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (meeting_id, title)
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_runs (
		id UUID PRIMARY KEY,
		municipality_id BIGINT NOT NULL REFERENCES municipalities(id),
		source_type TEXT NOT NULL,
		status TEXT NOT NULL,
		items_found INT NOT NULL DEFAULT 0,
		items_new INT NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS public_feedback (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL UNIQUE REFERENCES agenda_items(id),
		feedback_count INT NOT NULL DEFAULT 0,
		sentiment_summary TEXT NOT NULL DEFAULT '',
		support_count INT NOT NULL DEFAULT 0,
		oppose_count INT NOT NULL DEFAULT 0,
		neutral_count INT NOT NULL DEFAULT 0,
		positions JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_meeting ON agenda_items (meeting_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_missing_summary ON agenda_items (id) WHERE summary_standard IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_municipality_date ON meetings (municipality_id, date DESC)`,
}
