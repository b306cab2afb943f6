// Package store persists pipeline state behind a narrow contract: upsert by
// natural key for municipalities/meetings/items, insert-then-close for
// scrape runs, upsert by item id for public feedback, and the read queries
// the orchestrators and the feed need.
package store

import (
	"context"
	"errors"

	"github.com/opencouncil/agendalens/internal/civic"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// SummaryUpdate is the fixed AI-derived column set written by the
// summarization sweep. The scrape path never touches these columns, so the
// two write sets stay disjoint.
type SummaryUpdate struct {
	SummarySimple   string
	SummaryStandard string
	SummaryDetailed string
	Impact          string
	Category        string
	Categories      []string
	Tags            []string
	IsSignificant   bool
	BylawNumber     string
	Headline        string
	Topic           string
	KeyStats        []civic.KeyStat
	CommunitySignal *civic.CommunitySignal
}

// Store is the persistence contract used by every pipeline stage.
type Store interface {
	// EnsureSchema creates missing tables and indexes.
	EnsureSchema(ctx context.Context) error

	// SeedMunicipalities inserts reference municipalities, ignoring ones
	// already present. Municipalities are immutable after seeding.
	SeedMunicipalities(ctx context.Context, munis []civic.Municipality) error
	MunicipalityByCode(ctx context.Context, code string) (civic.Municipality, error)

	// UpsertMeeting inserts or refreshes a meeting by its natural key
	// (municipality, date, type) and returns the row id.
	UpsertMeeting(ctx context.Context, m civic.Meeting) (int64, error)

	// UpsertItem inserts or refreshes an item by (meeting, title). isNew
	// reports whether the row was inserted rather than updated.
	UpsertItem(ctx context.Context, item civic.AgendaItem) (id int64, isNew bool, err error)

	// OpenRun records the start of a scrape run in the running state.
	OpenRun(ctx context.Context, run civic.ScrapeRun) error
	// CloseRun transitions a run to its terminal state exactly once.
	CloseRun(ctx context.Context, id string, status civic.RunStatus, found, added int, errMsg string) error

	// ItemsMissingSummary returns items the summarization sweep has not
	// processed, in ascending creation order. force selects every item.
	ItemsMissingSummary(ctx context.Context, limit int, force bool) ([]civic.AgendaItem, error)
	UpdateItemSummary(ctx context.Context, itemID int64, update SummaryUpdate) error

	// MeetingsWithCorrespondence returns meetings holding a correspondence
	// sample that no feedback row has been derived from yet. force
	// reselects processed meetings.
	MeetingsWithCorrespondence(ctx context.Context, limit int, force bool) ([]civic.Meeting, error)
	ItemsForMeeting(ctx context.Context, meetingID int64) ([]civic.AgendaItem, error)
	UpsertFeedback(ctx context.Context, fb civic.PublicFeedback) error

	// FeedItems returns items joined with meeting date, municipality and
	// feedback count, newest meetings first, for read-path threading.
	FeedItems(ctx context.Context, municipalityID int64) ([]civic.AgendaItem, error)

	Close()
}
