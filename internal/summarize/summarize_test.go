package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/store"
)

const goodResponse = `{
  "summary_simple": "Council will replace the Oak Street water main.",
  "summary_standard": "Council approved awarding the water main replacement contract.",
  "summary_detailed": "The Oak Street water main has failed repeatedly. Council reviewed the tender results and awarded the contract to the low bidder. Work begins this summer.",
  "impact": "Oak Street residents will see construction and short water outages.",
  "categories": ["infrastructure", "finance"],
  "tags": ["water", "capital project"],
  "is_significant": true,
  "headline": "Oak Street water main finally getting replaced"
}`

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, user string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, user)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return goodResponse, nil
}

type fakeStore struct {
	store.Store

	items      []civic.AgendaItem
	queryLimit int
	queryForce bool
	updates    map[int64]store.SummaryUpdate
}

func (f *fakeStore) ItemsMissingSummary(_ context.Context, limit int, force bool) ([]civic.AgendaItem, error) {
	f.queryLimit = limit
	f.queryForce = force
	return f.items, nil
}

func (f *fakeStore) UpdateItemSummary(_ context.Context, itemID int64, update store.SummaryUpdate) error {
	if f.updates == nil {
		f.updates = map[int64]store.SummaryUpdate{}
	}
	f.updates[itemID] = update
	return nil
}

func testItems(n int) []civic.AgendaItem {
	items := make([]civic.AgendaItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, civic.AgendaItem{
			ID:         int64(i + 1),
			Title:      "Water Main Replacement",
			RawContent: "SUBJECT: Water Main Replacement\nPURPOSE: Replace aging infrastructure.",
		})
	}
	return items
}

func testOrchestrator(st store.Store, c *fakeCompleter) *Orchestrator {
	o := New(st, c, zap.NewNop(), 0)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestRunWritesValidatedColumns(t *testing.T) {
	st := &fakeStore{items: testItems(1)}
	o := testOrchestrator(st, &fakeCompleter{})

	res, err := o.Run(context.Background(), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, Result{Processed: 1}, res)

	update, ok := st.updates[1]
	require.True(t, ok)
	require.Equal(t, "Council will replace the Oak Street water main.", update.SummarySimple)
	require.Equal(t, "infrastructure", update.Category)
	require.Equal(t, []string{"infrastructure", "finance"}, update.Categories)
	require.True(t, update.IsSignificant)
	require.Equal(t, "Oak Street water main finally getting replaced", update.Headline)
}

func TestRunPrefersRawContentInPrompt(t *testing.T) {
	st := &fakeStore{items: []civic.AgendaItem{{
		ID:          1,
		Title:       "Zoning Amendment",
		Description: "short",
		RawContent:  "Full extracted zoning amendment text with the details.",
		Decision:    "Council approved the amendment.",
	}}}
	c := &fakeCompleter{}
	o := testOrchestrator(st, c)

	_, err := o.Run(context.Background(), Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, c.prompts, 1)
	require.Contains(t, c.prompts[0], "Full extracted zoning amendment text")
	require.Contains(t, c.prompts[0], "Council decision: Council approved the amendment.")
	require.NotContains(t, c.prompts[0], "short")
}

func TestRunContinuesPastBadResponse(t *testing.T) {
	st := &fakeStore{items: testItems(3)}
	c := &fakeCompleter{responses: []string{goodResponse, "I could not analyze this item.", goodResponse}}
	o := testOrchestrator(st, c)

	res, err := o.Run(context.Background(), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, Result{Processed: 2, Failed: 1}, res)

	require.Contains(t, st.updates, int64(1))
	require.NotContains(t, st.updates, int64(2))
	require.Contains(t, st.updates, int64(3))
}

func TestRunContinuesPastCompleterError(t *testing.T) {
	st := &fakeStore{items: testItems(2)}
	c := &fakeCompleter{errs: []error{errors.New("service unavailable"), nil}}
	o := testOrchestrator(st, c)

	res, err := o.Run(context.Background(), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, Result{Processed: 1, Failed: 1}, res)
	require.Contains(t, st.updates, int64(2))
}

func TestRunRejectsMissingRequiredField(t *testing.T) {
	partial := `{"summary_simple": "s", "summary_detailed": "d", "impact": "i"}`
	st := &fakeStore{items: testItems(1)}
	o := testOrchestrator(st, &fakeCompleter{responses: []string{partial}})

	res, err := o.Run(context.Background(), Options{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, Result{Failed: 1}, res)
	require.Empty(t, st.updates)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	st := &fakeStore{items: testItems(2)}
	o := testOrchestrator(st, &fakeCompleter{})

	res, err := o.Run(context.Background(), Options{DryRun: true, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, Result{Processed: 2}, res)
	require.Empty(t, st.updates)
}

func TestRunForwardsLimitAndForce(t *testing.T) {
	st := &fakeStore{}
	o := testOrchestrator(st, &fakeCompleter{})

	_, err := o.Run(context.Background(), Options{Limit: 7, Force: true})
	require.NoError(t, err)
	require.Equal(t, 7, st.queryLimit)
	require.True(t, st.queryForce)
}

func TestValidateEmptyCategoriesLeavesCategoryEmpty(t *testing.T) {
	update, err := validate(response{
		SummarySimple:   "a",
		SummaryStandard: "b",
		SummaryDetailed: "c",
		Impact:          "d",
	})
	require.NoError(t, err)
	require.Empty(t, update.Category)
	require.Empty(t, update.Categories)
}
