// Package scrape drives one ingestion pass per source: discover meeting
// links, fetch and parse each document, sample correspondence, and upsert
// the results under an audited scrape run.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/fetch"
	"github.com/opencouncil/agendalens/internal/metrics"
	"github.com/opencouncil/agendalens/internal/sample"
	"github.com/opencouncil/agendalens/internal/sources"
	"github.com/opencouncil/agendalens/internal/store"
)

// Fetcher is the plain HTTP path.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) ([]byte, error)
}

// Renderer is the headless fallback, used only after the plain path fails.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Options bound one coordinator invocation.
type Options struct {
	// DryRun prints what would be stored and skips all writes.
	DryRun bool
	// Limit caps meetings processed per invocation.
	Limit int
}

// Result summarizes one invocation.
type Result struct {
	MeetingsFound   int
	MeetingsScraped int
	MeetingsFailed  int
	ItemsFound      int
	ItemsNew        int
}

// Coordinator runs the fetch→parse→sample→upsert pipeline for one source.
type Coordinator struct {
	fetcher  Fetcher
	renderer Renderer
	store    store.Store
	log      *zap.Logger
	delay    time.Duration

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
	// now is swapped in tests for stable meeting status.
	now func() time.Time
}

// New builds a Coordinator. renderer may be nil when headless support is
// disabled; sources requiring it will fail their list fetch visibly.
func New(fetcher Fetcher, renderer Renderer, st store.Store, log *zap.Logger, delay time.Duration) *Coordinator {
	return &Coordinator{
		fetcher:  fetcher,
		renderer: renderer,
		store:    st,
		log:      log,
		delay:    delay,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// scrapedMeeting pairs a meeting with its extracted items before writing.
type scrapedMeeting struct {
	meeting civic.Meeting
	items   []civic.ExtractedItem
}

// Run executes one pass over src. Fetch and parse failures for individual
// meetings are logged and skipped; only a persistence failure aborts, and
// it closes the scrape run as failed first.
func (c *Coordinator) Run(ctx context.Context, src sources.Source, opts Options) (Result, error) {
	var res Result

	links, err := c.discover(ctx, src)
	if err != nil {
		return res, fmt.Errorf("discover %s meetings: %w", src.Municipality.Code, err)
	}
	res.MeetingsFound = len(links)

	if opts.Limit > 0 && len(links) > opts.Limit {
		links = links[:opts.Limit]
	}

	var scraped []scrapedMeeting
	for _, link := range links {
		if err := c.sleep(ctx, c.delay); err != nil {
			return res, err
		}
		sm, err := c.scrapeMeeting(ctx, src, link)
		if err != nil {
			res.MeetingsFailed++
			c.log.Warn("meeting scrape failed",
				zap.String("source", src.Municipality.Code),
				zap.String("url", link.URL),
				zap.Error(err))
			continue
		}
		metrics.ObserveMeeting(src.Municipality.Code)
		scraped = append(scraped, sm)
		res.MeetingsScraped++
		res.ItemsFound += len(sm.items)
		c.log.Info("meeting scraped",
			zap.String("source", src.Municipality.Code),
			zap.Time("date", sm.meeting.Date),
			zap.String("type", sm.meeting.Type),
			zap.Int("items", len(sm.items)))
	}

	if len(scraped) == 0 && res.MeetingsFound > 0 {
		c.log.Warn("no meetings scraped despite discovered links",
			zap.String("source", src.Municipality.Code),
			zap.Int("found", res.MeetingsFound))
	}

	if opts.DryRun {
		for _, sm := range scraped {
			for _, item := range sm.items {
				c.log.Info("dry-run item",
					zap.Time("meeting", sm.meeting.Date),
					zap.String("title", item.Title))
			}
		}
		return res, nil
	}

	newCount, err := c.persist(ctx, src, scraped, res.ItemsFound)
	if err != nil {
		return res, err
	}
	res.ItemsNew = newCount

	c.log.Info("scrape finished",
		zap.String("source", src.Municipality.Code),
		zap.Int("meetings", res.MeetingsScraped),
		zap.Int("failed", res.MeetingsFailed),
		zap.Int("items_found", res.ItemsFound),
		zap.Int("items_new", res.ItemsNew))
	return res, nil
}

// discover fetches the meeting-list page and extracts dated links,
// escalating to the headless renderer when the plain response is blocked.
func (c *Coordinator) discover(ctx context.Context, src sources.Source) ([]sources.MeetingLink, error) {
	body, err := c.fetcher.Fetch(ctx, src.ListURL, fetch.Options{
		Headers:     src.Policy.Headers,
		InsecureTLS: src.Policy.InsecureTLS,
	})
	if err != nil {
		metrics.ObserveFetch(src.Municipality.Code, "error")
		if !src.Policy.Headless {
			return nil, err
		}
		body = nil
	}

	if src.Policy.Headless && fetch.LooksBlocked(body) {
		if c.renderer == nil {
			return nil, fmt.Errorf("source %s needs headless rendering but none is configured", src.Municipality.Code)
		}
		c.log.Info("plain fetch blocked, escalating to headless",
			zap.String("source", src.Municipality.Code))
		body, err = c.renderer.Render(ctx, src.ListURL)
		if err != nil {
			metrics.ObserveFetch(src.Municipality.Code, "error")
			return nil, err
		}
	}
	metrics.ObserveFetch(src.Municipality.Code, "ok")

	return src.DiscoverMeetings(body)
}

func (c *Coordinator) scrapeMeeting(ctx context.Context, src sources.Source, link sources.MeetingLink) (scrapedMeeting, error) {
	body, err := c.fetcher.Fetch(ctx, link.URL, fetch.Options{
		Binary:      src.PDF,
		Headers:     src.Policy.Headers,
		InsecureTLS: src.Policy.InsecureTLS,
	})
	if err != nil {
		metrics.ObserveFetch(src.Municipality.Code, "error")
		return scrapedMeeting{}, err
	}
	metrics.ObserveFetch(src.Municipality.Code, "ok")

	var text string
	if src.PDF {
		text, err = fetch.ExtractPDFText(body)
		if err != nil {
			return scrapedMeeting{}, fmt.Errorf("extract pdf text: %w", err)
		}
	} else {
		text, err = textFromHTML(body)
		if err != nil {
			return scrapedMeeting{}, fmt.Errorf("extract html text: %w", err)
		}
	}

	items := src.Table.Parse(text)

	meeting := civic.Meeting{
		Date:      link.Date,
		Type:      link.Type,
		Title:     link.Title,
		Status:    c.meetingStatus(link.Date),
		AgendaURL: link.URL,
	}

	if src.PDF {
		if corr, ok := sample.Extract(text, sample.Config{EndMarkers: src.Table.SectionMarkers}); ok {
			meeting.RawCorrespondence = corr.Sample
			meeting.CorrespondenceLetters = corr.ApproxLetters
			meeting.CorrespondencePages = corr.Pages
		}
	}

	return scrapedMeeting{meeting: meeting, items: items}, nil
}

// persist opens a scrape run, upserts everything, and closes the run
// exactly once: completed with counts, or failed with the error message.
func (c *Coordinator) persist(ctx context.Context, src sources.Source, scraped []scrapedMeeting, itemsFound int) (int, error) {
	muni, err := c.store.MunicipalityByCode(ctx, src.Municipality.Code)
	if err != nil {
		return 0, fmt.Errorf("lookup municipality %s: %w", src.Municipality.Code, err)
	}

	run := civic.ScrapeRun{
		ID:             uuid.NewString(),
		MunicipalityID: muni.ID,
		SourceType:     src.Type,
		StartedAt:      c.now().UTC(),
	}
	if err := c.store.OpenRun(ctx, run); err != nil {
		return 0, fmt.Errorf("open scrape run: %w", err)
	}

	newCount, upsertErr := c.upsertAll(ctx, src, muni.ID, scraped)
	if upsertErr != nil {
		if closeErr := c.store.CloseRun(ctx, run.ID, civic.RunFailed, itemsFound, newCount, upsertErr.Error()); closeErr != nil {
			c.log.Error("failed to close scrape run", zap.String("run", run.ID), zap.Error(closeErr))
		}
		metrics.ObserveRunClosed(string(civic.RunFailed))
		return newCount, upsertErr
	}

	if err := c.store.CloseRun(ctx, run.ID, civic.RunCompleted, itemsFound, newCount, ""); err != nil {
		return newCount, fmt.Errorf("close scrape run: %w", err)
	}
	metrics.ObserveRunClosed(string(civic.RunCompleted))
	return newCount, nil
}

func (c *Coordinator) upsertAll(ctx context.Context, src sources.Source, muniID int64, scraped []scrapedMeeting) (int, error) {
	newCount := 0
	for _, sm := range scraped {
		if sm.meeting.Date.IsZero() {
			// Date is part of the natural key; a meeting without one is
			// skipped, never stored.
			c.log.Warn("skipping meeting with no resolvable date",
				zap.String("source", src.Municipality.Code),
				zap.String("title", sm.meeting.Title))
			continue
		}
		meeting := sm.meeting
		meeting.MunicipalityID = muniID

		meetingID, err := c.store.UpsertMeeting(ctx, meeting)
		if err != nil {
			return newCount, fmt.Errorf("upsert meeting %s/%s: %w",
				src.Municipality.Code, meeting.Date.Format("2006-01-02"), err)
		}

		for _, item := range sm.items {
			_, isNew, err := c.store.UpsertItem(ctx, civic.AgendaItem{
				MeetingID:   meetingID,
				Title:       item.Title,
				Description: item.Description,
				RawContent:  item.RawContent,
				Decision:    item.Decision,
			})
			if err != nil {
				return newCount, fmt.Errorf("upsert item %q: %w", item.Title, err)
			}
			metrics.ObserveItemUpsert(src.Municipality.Code, isNew)
			if isNew {
				newCount++
			}
		}
	}
	return newCount, nil
}

func (c *Coordinator) meetingStatus(date time.Time) civic.MeetingStatus {
	if date.After(c.now()) {
		return civic.MeetingScheduled
	}
	return civic.MeetingCompleted
}

// textFromHTML flattens an HTML agenda page to the line-oriented text the
// parse engine expects, dropping script/style noise.
func textFromHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, footer").Remove()

	var b strings.Builder
	doc.Find("h1, h2, h3, h4, p, li, td, div").Each(func(_ int, sel *goquery.Selection) {
		// Only leaf-ish nodes; containers would duplicate their text.
		if sel.Children().Length() > 0 && !sel.Is("p, li, td") {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return b.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
