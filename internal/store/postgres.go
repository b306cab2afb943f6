package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencouncil/agendalens/internal/civic"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxIface is the slice of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type pgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool pgxIface
}

// New connects a Postgres-backed store using the provided config.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool pgxIface) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema applies the DDL idempotently.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// SeedMunicipalities inserts reference rows, skipping codes already present.
func (s *Postgres) SeedMunicipalities(ctx context.Context, munis []civic.Municipality) error {
	for _, m := range munis {
		_, err := s.pool.Exec(ctx, `
INSERT INTO municipalities (name, code, website_url)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO NOTHING`, m.Name, m.Code, m.WebsiteURL)
		if err != nil {
			return fmt.Errorf("seed municipality %s: %w", m.Code, err)
		}
	}
	return nil
}

// MunicipalityByCode looks up one municipality by short code.
func (s *Postgres) MunicipalityByCode(ctx context.Context, code string) (civic.Municipality, error) {
	var m civic.Municipality
	err := s.pool.QueryRow(ctx, `
SELECT id, name, code, website_url FROM municipalities WHERE code = $1`, code).
		Scan(&m.ID, &m.Name, &m.Code, &m.WebsiteURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return civic.Municipality{}, ErrNotFound
	}
	if err != nil {
		return civic.Municipality{}, fmt.Errorf("select municipality: %w", err)
	}
	return m, nil
}

// UpsertMeeting inserts or refreshes a meeting by its natural key. Links and
// the correspondence sample are refreshed on every re-scrape.
func (s *Postgres) UpsertMeeting(ctx context.Context, m civic.Meeting) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO meetings (
	municipality_id, date, meeting_type, title, status,
	agenda_url, minutes_url, video_url,
	raw_correspondence, correspondence_letters, correspondence_pages
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (municipality_id, date, meeting_type) DO UPDATE SET
	title = EXCLUDED.title,
	status = EXCLUDED.status,
	agenda_url = EXCLUDED.agenda_url,
	minutes_url = EXCLUDED.minutes_url,
	video_url = EXCLUDED.video_url,
	raw_correspondence = EXCLUDED.raw_correspondence,
	correspondence_letters = EXCLUDED.correspondence_letters,
	correspondence_pages = EXCLUDED.correspondence_pages,
	updated_at = NOW()
RETURNING id`,
		m.MunicipalityID, m.Date, m.Type, m.Title, string(m.Status),
		m.AgendaURL, m.MinutesURL, m.VideoURL,
		nullIfEmpty(m.RawCorrespondence), m.CorrespondenceLetters, m.CorrespondencePages,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert meeting: %w", err)
	}
	return id, nil
}

// UpsertItem inserts or refreshes an item by (meeting, title). Only
// extraction columns are written here; the AI column set belongs to
// UpdateItemSummary.
func (s *Postgres) UpsertItem(ctx context.Context, item civic.AgendaItem) (int64, bool, error) {
	var (
		id    int64
		isNew bool
	)
	err := s.pool.QueryRow(ctx, `
INSERT INTO agenda_items (meeting_id, title, description, raw_content, decision)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (meeting_id, title) DO UPDATE SET
	description = EXCLUDED.description,
	raw_content = EXCLUDED.raw_content,
	decision = EXCLUDED.decision,
	updated_at = NOW()
RETURNING id, (xmax = 0) AS inserted`,
		item.MeetingID, item.Title, item.Description, item.RawContent, nullIfEmpty(item.Decision),
	).Scan(&id, &isNew)
	if err != nil {
		return 0, false, fmt.Errorf("upsert item: %w", err)
	}
	return id, isNew, nil
}

// OpenRun records a scrape run in the running state.
func (s *Postgres) OpenRun(ctx context.Context, run civic.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO scrape_runs (id, municipality_id, source_type, status, started_at)
VALUES ($1,$2,$3,$4,$5)`,
		run.ID, run.MunicipalityID, run.SourceType, string(civic.RunRunning), run.StartedAt)
	if err != nil {
		return fmt.Errorf("open scrape run: %w", err)
	}
	return nil
}

// CloseRun transitions a run to completed or failed in a single mutation.
func (s *Postgres) CloseRun(ctx context.Context, id string, status civic.RunStatus, found, added int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE scrape_runs
SET status = $2, items_found = $3, items_new = $4, error_message = $5, completed_at = NOW()
WHERE id = $1`,
		id, string(status), found, added, nullIfEmpty(errMsg))
	if err != nil {
		return fmt.Errorf("close scrape run: %w", err)
	}
	return nil
}

// ItemsMissingSummary selects items the summarization sweep still owes, in
// ascending creation order so repeated invocations resume stably.
func (s *Postgres) ItemsMissingSummary(ctx context.Context, limit int, force bool) ([]civic.AgendaItem, error) {
	query := `
SELECT id, meeting_id, title, description, raw_content, COALESCE(decision, '')
FROM agenda_items
WHERE summary_standard IS NULL
ORDER BY id ASC
LIMIT $1`
	if force {
		query = `
SELECT id, meeting_id, title, description, raw_content, COALESCE(decision, '')
FROM agenda_items
ORDER BY id ASC
LIMIT $1`
	}
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select items missing summary: %w", err)
	}
	defer rows.Close()

	var items []civic.AgendaItem
	for rows.Next() {
		var it civic.AgendaItem
		if err := rows.Scan(&it.ID, &it.MeetingID, &it.Title, &it.Description, &it.RawContent, &it.Decision); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// UpdateItemSummary writes the fixed AI-derived column set for one item.
func (s *Postgres) UpdateItemSummary(ctx context.Context, itemID int64, u SummaryUpdate) error {
	categories, err := marshalOrNil(u.Categories)
	if err != nil {
		return err
	}
	tags, err := marshalOrNil(u.Tags)
	if err != nil {
		return err
	}
	keyStats, err := marshalOrNil(u.KeyStats)
	if err != nil {
		return err
	}
	var signal any
	if u.CommunitySignal != nil {
		signal, err = json.Marshal(u.CommunitySignal)
		if err != nil {
			return fmt.Errorf("marshal community signal: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
UPDATE agenda_items SET
	summary_simple = $2,
	summary_standard = $3,
	summary_detailed = $4,
	impact = $5,
	category = $6,
	categories = $7,
	tags = $8,
	is_significant = $9,
	bylaw_number = COALESCE($10, bylaw_number),
	headline = $11,
	topic = $12,
	key_stats = $13,
	community_signal = $14,
	updated_at = NOW()
WHERE id = $1`,
		itemID,
		u.SummarySimple, u.SummaryStandard, u.SummaryDetailed, u.Impact,
		nullIfEmpty(u.Category), categories, tags, u.IsSignificant,
		nullIfEmpty(u.BylawNumber), nullIfEmpty(u.Headline), nullIfEmpty(u.Topic),
		keyStats, signal,
	)
	if err != nil {
		return fmt.Errorf("update item summary: %w", err)
	}
	return nil
}

// MeetingsWithCorrespondence selects meetings carrying a correspondence
// sample whose items have no feedback row yet.
func (s *Postgres) MeetingsWithCorrespondence(ctx context.Context, limit int, force bool) ([]civic.Meeting, error) {
	query := `
SELECT id, municipality_id, date, meeting_type, title,
	raw_correspondence, correspondence_letters, correspondence_pages
FROM meetings
WHERE raw_correspondence IS NOT NULL
  AND NOT EXISTS (
	SELECT 1 FROM public_feedback pf
	JOIN agenda_items ai ON ai.id = pf.item_id
	WHERE ai.meeting_id = meetings.id
  )
ORDER BY date DESC
LIMIT $1`
	if force {
		query = `
SELECT id, municipality_id, date, meeting_type, title,
	raw_correspondence, correspondence_letters, correspondence_pages
FROM meetings
WHERE raw_correspondence IS NOT NULL
ORDER BY date DESC
LIMIT $1`
	}
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select meetings with correspondence: %w", err)
	}
	defer rows.Close()

	var meetings []civic.Meeting
	for rows.Next() {
		var m civic.Meeting
		if err := rows.Scan(&m.ID, &m.MunicipalityID, &m.Date, &m.Type, &m.Title,
			&m.RawCorrespondence, &m.CorrespondenceLetters, &m.CorrespondencePages); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return meetings, nil
}

// ItemsForMeeting returns a meeting's items in document order.
func (s *Postgres) ItemsForMeeting(ctx context.Context, meetingID int64) ([]civic.AgendaItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, meeting_id, title, description, COALESCE(bylaw_number, '')
FROM agenda_items
WHERE meeting_id = $1
ORDER BY id ASC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("select items for meeting: %w", err)
	}
	defer rows.Close()

	var items []civic.AgendaItem
	for rows.Next() {
		var it civic.AgendaItem
		if err := rows.Scan(&it.ID, &it.MeetingID, &it.Title, &it.Description, &it.BylawNumber); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// UpsertFeedback writes the at-most-one feedback row for an item.
func (s *Postgres) UpsertFeedback(ctx context.Context, fb civic.PublicFeedback) error {
	positions, err := marshalOrNil(fb.Positions)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO public_feedback (
	item_id, feedback_count, sentiment_summary,
	support_count, oppose_count, neutral_count, positions
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (item_id) DO UPDATE SET
	feedback_count = EXCLUDED.feedback_count,
	sentiment_summary = EXCLUDED.sentiment_summary,
	support_count = EXCLUDED.support_count,
	oppose_count = EXCLUDED.oppose_count,
	neutral_count = EXCLUDED.neutral_count,
	positions = EXCLUDED.positions,
	updated_at = NOW()`,
		fb.ItemID, fb.FeedbackCount, fb.SentimentSummary,
		fb.SupportCount, fb.OpposeCount, fb.NeutralCount, positions)
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// FeedItems returns the read-path join the threader consumes: items with
// their meeting date, municipality and aggregated feedback count, newest
// meetings first. Ties on date resolve to ascending item id.
func (s *Postgres) FeedItems(ctx context.Context, municipalityID int64) ([]civic.AgendaItem, error) {
	rows, err := s.pool.Query(ctx, `
SELECT
	ai.id, ai.meeting_id, ai.title, ai.description,
	COALESCE(ai.decision, ''), COALESCE(ai.summary_simple, ''),
	COALESCE(ai.summary_standard, ''), COALESCE(ai.summary_detailed, ''),
	COALESCE(ai.impact, ''), COALESCE(ai.category, ''),
	ai.is_significant, COALESCE(ai.bylaw_number, ''),
	COALESCE(ai.headline, ''), COALESCE(ai.topic, ''),
	m.municipality_id, m.date,
	COALESCE(pf.feedback_count, 0)
FROM agenda_items ai
JOIN meetings m ON m.id = ai.meeting_id
LEFT JOIN public_feedback pf ON pf.item_id = ai.id
WHERE m.municipality_id = $1
ORDER BY m.date DESC, ai.id ASC`, municipalityID)
	if err != nil {
		return nil, fmt.Errorf("select feed items: %w", err)
	}
	defer rows.Close()

	var items []civic.AgendaItem
	for rows.Next() {
		var it civic.AgendaItem
		if err := rows.Scan(
			&it.ID, &it.MeetingID, &it.Title, &it.Description,
			&it.Decision, &it.SummarySimple, &it.SummaryStandard, &it.SummaryDetailed,
			&it.Impact, &it.Category, &it.IsSignificant, &it.BylawNumber,
			&it.Headline, &it.Topic,
			&it.MunicipalityID, &it.MeetingDate, &it.FeedbackCount,
		); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed items: %w", err)
	}
	return items, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalOrNil(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []civic.KeyStat:
		if len(val) == 0 {
			return nil, nil
		}
	case []civic.Position:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return data, nil
}
