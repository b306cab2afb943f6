// Package civic defines core types shared across pipeline stages.
package civic

import "time"

// Municipality is a static reference entity seeded once at install time.
type Municipality struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	WebsiteURL string `json:"website_url"`
}

// MeetingStatus represents the lifecycle state of a council meeting.
type MeetingStatus string

// Meeting status values persisted with each meeting row.
const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
)

// Meeting is one sitting of a council, unique per
// (municipality, date, meeting type).
type Meeting struct {
	ID             int64         `json:"id"`
	MunicipalityID int64         `json:"municipality_id"`
	Date           time.Time     `json:"date"`
	Type           string        `json:"meeting_type"`
	Title          string        `json:"title"`
	Status         MeetingStatus `json:"status"`
	AgendaURL      string        `json:"agenda_url,omitempty"`
	MinutesURL     string        `json:"minutes_url,omitempty"`
	VideoURL       string        `json:"video_url,omitempty"`

	// RawCorrespondence holds the bounded public-correspondence sample
	// extracted from the agenda package, when the source carries one.
	RawCorrespondence     string `json:"-"`
	CorrespondenceLetters int    `json:"correspondence_letters,omitempty"`
	CorrespondencePages   int    `json:"correspondence_pages,omitempty"`
}

// ExtractedItem is a parser's normalized output for one agenda entry,
// before persistence assigns identity.
type ExtractedItem struct {
	Title       string
	Description string
	RawContent  string
	Decision    string
}

// KeyStat is a single labelled figure the summarizer pulled from an item.
type KeyStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// CommunitySignal is an AI-extracted indicator of public participation
// (letters, survey responses, service-delivery counts) tied to an item.
type CommunitySignal struct {
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Detail string `json:"detail"`
}

// AgendaItem is one discrete decision/report/bylaw entry within a meeting,
// unique per (meeting, title). Extraction columns are written by the scrape
// path; the AI columns are written later by the summarization sweep. The two
// column sets are disjoint.
type AgendaItem struct {
	ID          int64  `json:"id"`
	MeetingID   int64  `json:"meeting_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RawContent  string `json:"-"`
	Decision    string `json:"decision,omitempty"`

	SummarySimple   string           `json:"summary_simple,omitempty"`
	SummaryStandard string           `json:"summary_standard,omitempty"`
	SummaryDetailed string           `json:"summary_detailed,omitempty"`
	Impact          string           `json:"impact,omitempty"`
	Category        string           `json:"category,omitempty"`
	Categories      []string         `json:"categories,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	IsSignificant   bool             `json:"is_significant"`
	BylawNumber     string           `json:"bylaw_number,omitempty"`
	Headline        string           `json:"headline,omitempty"`
	Topic           string           `json:"topic,omitempty"`
	KeyStats        []KeyStat        `json:"key_stats,omitempty"`
	CommunitySignal *CommunitySignal `json:"community_signal,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Joined at read time for threading and the feed; never persisted on
	// the item row itself.
	MunicipalityID int64     `json:"municipality_id,omitempty"`
	MeetingDate    time.Time `json:"meeting_date,omitempty"`
	FeedbackCount  int       `json:"feedback_count,omitempty"`
}

// HasSummary reports whether the summarization sweep has processed the item.
func (i AgendaItem) HasSummary() bool {
	return i.SummaryStandard != ""
}

// RunStatus represents the lifecycle state of a scrape run.
type RunStatus string

// Run status values. A run left in RunRunning after its process died is
// abandoned, never resumed.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ScrapeRun is the append-only audit record for one ingestion pass over one
// source.
type ScrapeRun struct {
	ID             string     `json:"id"`
	MunicipalityID int64      `json:"municipality_id"`
	SourceType     string     `json:"source_type"`
	Status         RunStatus  `json:"status"`
	ItemsFound     int        `json:"items_found"`
	ItemsNew       int        `json:"items_new"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Sentiment classifies one public position on an item.
type Sentiment string

// Recognized sentiment tags; anything else is discarded at the validation
// boundary.
const (
	SentimentSupport Sentiment = "support"
	SentimentOppose  Sentiment = "oppose"
	SentimentNeutral Sentiment = "neutral"
)

// Position is one distinct stance extracted from public correspondence.
type Position struct {
	Stance    string    `json:"stance"`
	Sentiment Sentiment `json:"sentiment"`
	Count     int       `json:"count"`
	Detail    string    `json:"detail"`
}

// PublicFeedback aggregates correspondence sentiment for a single item.
// At most one row exists per item.
type PublicFeedback struct {
	ID               int64      `json:"id"`
	ItemID           int64      `json:"item_id"`
	FeedbackCount    int        `json:"feedback_count"`
	SentimentSummary string     `json:"sentiment_summary"`
	SupportCount     int        `json:"support_count"`
	OpposeCount      int        `json:"oppose_count"`
	NeutralCount     int        `json:"neutral_count"`
	Positions        []Position `json:"positions"`
}

// IssueGroup is the derived thread of same-bylaw items across meetings.
// It is computed at read time and never persisted.
type IssueGroup struct {
	MunicipalityID int64        `json:"municipality_id"`
	BylawNumber    string       `json:"bylaw_number"`
	Title          string       `json:"title"`
	Topic          string       `json:"topic,omitempty"`
	Items          []AgendaItem `json:"items"`
	FeedbackTotal  int          `json:"feedback_total"`
}
