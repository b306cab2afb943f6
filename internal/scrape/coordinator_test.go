package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/fetch"
	"github.com/opencouncil/agendalens/internal/parse"
	"github.com/opencouncil/agendalens/internal/sources"
	"github.com/opencouncil/agendalens/internal/store"
)

const listHTML = `<html><body><table>
<tr><td><a href="/agenda/2025-03-10">Regular Council Agenda - March 10, 2025</a></td></tr>
<tr><td><a href="/agenda/2025-03-24">Special Council Agenda - March 24, 2025</a></td></tr>
</table></body></html>`

const agendaHTML = `<html><body>
<div>STAFF REPORT</div>
<p>SUBJECT: Water Main Replacement on Oak Street</p>
<p>PURPOSE: To obtain council approval for the replacement project.</p>
<p>BACKGROUND: The existing main has failed four times since 2019.</p>
<p>RECOMMENDATION: THAT Council award the contract to the low bidder.</p>
</body></html>`

type fetchCall struct {
	url  string
	opts fetch.Options
}

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
	calls []fetchCall
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts fetch.Options) ([]byte, error) {
	f.calls = append(f.calls, fetchCall{url: url, opts: opts})
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &fetch.Error{Kind: fetch.KindNotFound, URL: url, StatusCode: 404}
	}
	return body, nil
}

type fakeRenderer struct {
	body  []byte
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	r.calls++
	return r.body, nil
}

type closedRun struct {
	status civic.RunStatus
	found  int
	added  int
	errMsg string
}

// memStore is an in-memory Store for coordinator tests. Only the write
// path the coordinator exercises is implemented.
type memStore struct {
	munis    map[string]civic.Municipality
	meetings map[string]int64
	items    map[string]int64
	nextID   int64
	opened   []civic.ScrapeRun
	closed   []closedRun

	failUpsertItem error
}

func newMemStore(codes ...string) *memStore {
	s := &memStore{
		munis:    map[string]civic.Municipality{},
		meetings: map[string]int64{},
		items:    map[string]int64{},
	}
	for i, code := range codes {
		s.munis[code] = civic.Municipality{ID: int64(i + 1), Code: code}
	}
	return s
}

func (s *memStore) EnsureSchema(context.Context) error { return nil }

func (s *memStore) SeedMunicipalities(context.Context, []civic.Municipality) error { return nil }

func (s *memStore) MunicipalityByCode(_ context.Context, code string) (civic.Municipality, error) {
	m, ok := s.munis[code]
	if !ok {
		return civic.Municipality{}, store.ErrNotFound
	}
	return m, nil
}

func (s *memStore) UpsertMeeting(_ context.Context, m civic.Meeting) (int64, error) {
	key := fmt.Sprintf("%d|%s|%s", m.MunicipalityID, m.Date.Format("2006-01-02"), m.Type)
	if id, ok := s.meetings[key]; ok {
		return id, nil
	}
	s.nextID++
	s.meetings[key] = s.nextID
	return s.nextID, nil
}

func (s *memStore) UpsertItem(_ context.Context, item civic.AgendaItem) (int64, bool, error) {
	if s.failUpsertItem != nil {
		return 0, false, s.failUpsertItem
	}
	key := fmt.Sprintf("%d|%s", item.MeetingID, item.Title)
	if id, ok := s.items[key]; ok {
		return id, false, nil
	}
	s.nextID++
	s.items[key] = s.nextID
	return s.nextID, true, nil
}

func (s *memStore) OpenRun(_ context.Context, run civic.ScrapeRun) error {
	s.opened = append(s.opened, run)
	return nil
}

func (s *memStore) CloseRun(_ context.Context, _ string, status civic.RunStatus, found, added int, errMsg string) error {
	s.closed = append(s.closed, closedRun{status: status, found: found, added: added, errMsg: errMsg})
	return nil
}

func (s *memStore) ItemsMissingSummary(context.Context, int, bool) ([]civic.AgendaItem, error) {
	return nil, nil
}

func (s *memStore) UpdateItemSummary(context.Context, int64, store.SummaryUpdate) error { return nil }

func (s *memStore) MeetingsWithCorrespondence(context.Context, int, bool) ([]civic.Meeting, error) {
	return nil, nil
}

func (s *memStore) ItemsForMeeting(context.Context, int64) ([]civic.AgendaItem, error) {
	return nil, nil
}

func (s *memStore) UpsertFeedback(context.Context, civic.PublicFeedback) error { return nil }

func (s *memStore) FeedItems(context.Context, int64) ([]civic.AgendaItem, error) { return nil, nil }

func (s *memStore) Close() {}

func testSource(headless bool) sources.Source {
	return sources.Source{
		Municipality: civic.Municipality{Name: "District of Westbrook", Code: "westbrook"},
		Type:         "westbrook",
		ListURL:      "https://westbrook.example/meetings",
		Policy:       sources.FetchPolicy{InsecureTLS: true, Headless: headless},
		Table:        parse.Westbrook,
	}
}

func testFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string][]byte{
		"https://westbrook.example/meetings":        []byte(listHTML),
		"https://westbrook.example/agenda/2025-03-10": []byte(agendaHTML),
		"https://westbrook.example/agenda/2025-03-24": []byte(agendaHTML),
	}}
}

func testCoordinator(f Fetcher, r Renderer, st store.Store) *Coordinator {
	c := New(f, r, st, zap.NewNop(), 0)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	c.now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestRunPersistsDiscoveredMeetings(t *testing.T) {
	fetcher := testFetcher()
	st := newMemStore("westbrook")
	c := testCoordinator(fetcher, nil, st)

	res, err := c.Run(context.Background(), testSource(false), Options{Limit: 10})
	require.NoError(t, err)

	require.Equal(t, 2, res.MeetingsFound)
	require.Equal(t, 2, res.MeetingsScraped)
	require.Equal(t, 0, res.MeetingsFailed)
	require.Equal(t, 2, res.ItemsFound)
	require.Equal(t, 2, res.ItemsNew)

	require.Len(t, st.meetings, 2)
	require.Contains(t, st.meetings, "1|2025-03-10|regular")
	require.Contains(t, st.meetings, "1|2025-03-24|special")
	require.Len(t, st.items, 2)

	require.Len(t, st.opened, 1)
	require.Equal(t, "westbrook", st.opened[0].SourceType)
	require.Len(t, st.closed, 1)
	require.Equal(t, civic.RunCompleted, st.closed[0].status)
	require.Equal(t, 2, st.closed[0].found)
	require.Equal(t, 2, st.closed[0].added)
	require.Empty(t, st.closed[0].errMsg)

	// The source's TLS relaxation rides along on every request.
	for _, call := range fetcher.calls {
		require.True(t, call.opts.InsecureTLS, call.url)
	}
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	st := newMemStore("westbrook")
	c := testCoordinator(testFetcher(), nil, st)

	first, err := c.Run(context.Background(), testSource(false), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, first.ItemsNew)

	second, err := c.Run(context.Background(), testSource(false), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, second.ItemsFound)
	require.Equal(t, 0, second.ItemsNew)

	require.Len(t, st.meetings, 2)
	require.Len(t, st.items, 2)
}

func TestRunClosesRunFailedOnStoreError(t *testing.T) {
	st := newMemStore("westbrook")
	st.failUpsertItem = errors.New("connection reset")
	c := testCoordinator(testFetcher(), nil, st)

	_, err := c.Run(context.Background(), testSource(false), Options{Limit: 10})
	require.Error(t, err)

	require.Len(t, st.closed, 1)
	require.Equal(t, civic.RunFailed, st.closed[0].status)
	require.Contains(t, st.closed[0].errMsg, "connection reset")
}

func TestRunDryRunSkipsPersistence(t *testing.T) {
	st := newMemStore("westbrook")
	c := testCoordinator(testFetcher(), nil, st)

	res, err := c.Run(context.Background(), testSource(false), Options{DryRun: true, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, res.ItemsFound)

	require.Empty(t, st.opened)
	require.Empty(t, st.meetings)
	require.Empty(t, st.items)
}

func TestRunEscalatesToHeadlessWhenListIsBlocked(t *testing.T) {
	fetcher := testFetcher()
	fetcher.pages["https://westbrook.example/meetings"] = []byte("<html><body></body></html>")
	renderer := &fakeRenderer{body: []byte(listHTML)}
	st := newMemStore("westbrook")
	c := testCoordinator(fetcher, renderer, st)

	res, err := c.Run(context.Background(), testSource(true), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, renderer.calls)
	require.Equal(t, 2, res.MeetingsScraped)
}

func TestRunContinuesPastFailingMeeting(t *testing.T) {
	fetcher := testFetcher()
	fetcher.errs = map[string]error{
		"https://westbrook.example/agenda/2025-03-10": &fetch.Error{Kind: fetch.KindUnreachable, URL: "x"},
	}
	st := newMemStore("westbrook")
	c := testCoordinator(fetcher, nil, st)

	res, err := c.Run(context.Background(), testSource(false), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.MeetingsFailed)
	require.Equal(t, 1, res.MeetingsScraped)

	require.Len(t, st.closed, 1)
	require.Equal(t, civic.RunCompleted, st.closed[0].status)
}

func TestRunHonorsMeetingLimit(t *testing.T) {
	fetcher := testFetcher()
	st := newMemStore("westbrook")
	c := testCoordinator(fetcher, nil, st)

	res, err := c.Run(context.Background(), testSource(false), Options{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, res.MeetingsFound)
	require.Equal(t, 1, res.MeetingsScraped)
	require.Len(t, st.meetings, 1)
}

func TestTextFromHTMLFlattensLeafNodes(t *testing.T) {
	text, err := textFromHTML([]byte(agendaHTML))
	require.NoError(t, err)
	require.Contains(t, text, "STAFF REPORT\n")
	require.Contains(t, text, "SUBJECT: Water Main Replacement on Oak Street")
	require.NotContains(t, text, "<p>")
}
