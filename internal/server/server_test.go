package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/store"
)

type fakeStore struct {
	store.Store

	munis map[string]civic.Municipality
	items map[int64][]civic.AgendaItem
}

func (f *fakeStore) MunicipalityByCode(_ context.Context, code string) (civic.Municipality, error) {
	m, ok := f.munis[code]
	if !ok {
		return civic.Municipality{}, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) FeedItems(_ context.Context, municipalityID int64) ([]civic.AgendaItem, error) {
	return f.items[municipalityID], nil
}

func feedStore() *fakeStore {
	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)
	return &fakeStore{
		munis: map[string]civic.Municipality{
			"westbrook": {ID: 1, Name: "District of Westbrook", Code: "westbrook"},
		},
		items: map[int64][]civic.AgendaItem{1: {
			{ID: 3, MeetingID: 200, MunicipalityID: 1, MeetingDate: april, Title: "Zoning Amendment Bylaw No. 1402 Adoption", FeedbackCount: 4},
			{ID: 2, MeetingID: 200, MunicipalityID: 1, MeetingDate: april, Title: "Quarterly Financial Report"},
			{ID: 1, MeetingID: 100, MunicipalityID: 1, MeetingDate: march, Title: "Zoning Amendment Bylaw No. 1402 First Reading", FeedbackCount: 9},
		}},
	}
}

func testServer() *Server {
	return New(feedStore(), zap.NewNop())
}

func TestFeedThreadsRepeatedBylaws(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/feed?municipality=westbrook", nil)
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp feedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, "westbrook", resp.Municipality.Code)
	require.Len(t, resp.Groups, 1)
	group := resp.Groups[0]
	require.Equal(t, "1402", group.BylawNumber)
	require.Len(t, group.Items, 2)
	require.Equal(t, int64(3), group.Items[0].ID, "newest meeting first")
	require.Equal(t, 13, group.FeedbackTotal)

	// Grouped items never repeat in the standalone list.
	require.Len(t, resp.Items, 1)
	require.Equal(t, int64(2), resp.Items[0].ID)
}

func TestEmptyFeedSerializesEmptyArrays(t *testing.T) {
	st := feedStore()
	st.munis["southport"] = civic.Municipality{ID: 4, Name: "Village of Southport", Code: "southport"}
	srv := New(st, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/feed?municipality=southport", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"groups":[]`)
	require.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestFeedRequiresMunicipality(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedRejectsUnknownMunicipality(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/feed?municipality=gotham", nil)
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpointResponds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
