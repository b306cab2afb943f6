// Package summarize sweeps agenda items that have no AI output yet, asks
// the completion service for structured summaries, validates the response,
// and writes the AI column set. A bad response skips one item, never the
// batch.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/llm"
	"github.com/opencouncil/agendalens/internal/metrics"
	"github.com/opencouncil/agendalens/internal/store"
)

const systemPrompt = `You summarize municipal council agenda items for residents.
Respond with a single JSON object, no prose, with these keys:
  summary_simple    one plain-language sentence
  summary_standard  one short paragraph
  summary_detailed  two to three paragraphs
  impact            one sentence on how residents are affected
  categories        array of category strings, most relevant first
  tags              array of short free-text tags
  is_significant    boolean, true for decisions with broad impact
  bylaw_number      bylaw number as a string if one is cited, else omit
  headline          optional editorial headline
  topic             optional short topic label
  key_stats         optional array of {label, value} figures
  community_signal  optional {kind, count, detail} participation indicator`

// maxPromptContent bounds the item text placed in a prompt.
const maxPromptContent = 6000

// Options bound one sweep.
type Options struct {
	DryRun bool
	// Force reprocesses items that already have a summary.
	Force bool
	Limit int
}

// Result reports the sweep outcome.
type Result struct {
	Processed int
	Failed    int
}

// Orchestrator runs the summarization sweep.
type Orchestrator struct {
	store     store.Store
	completer llm.Completer
	log       *zap.Logger
	delay     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Orchestrator with a fixed inter-call delay.
func New(st store.Store, completer llm.Completer, log *zap.Logger, delay time.Duration) *Orchestrator {
	return &Orchestrator{
		store:     st,
		completer: completer,
		log:       log,
		delay:     delay,
		sleep:     sleepCtx,
	}
}

// response is the typed shape the model must produce. Anything that fails
// to unmarshal into it is a malformed response.
type response struct {
	SummarySimple   string                 `json:"summary_simple"`
	SummaryStandard string                 `json:"summary_standard"`
	SummaryDetailed string                 `json:"summary_detailed"`
	Impact          string                 `json:"impact"`
	Categories      []string               `json:"categories"`
	Tags            []string               `json:"tags"`
	IsSignificant   bool                   `json:"is_significant"`
	BylawNumber     string                 `json:"bylaw_number"`
	Headline        string                 `json:"headline"`
	Topic           string                 `json:"topic"`
	KeyStats        []civic.KeyStat        `json:"key_stats"`
	CommunitySignal *civic.CommunitySignal `json:"community_signal"`
}

// Run selects unsummarized items in ascending creation order and processes
// each one. Item-level failures are logged and counted; the sweep continues.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	items, err := o.store.ItemsMissingSummary(ctx, opts.Limit, opts.Force)
	if err != nil {
		return res, fmt.Errorf("select items to summarize: %w", err)
	}
	if len(items) == 0 {
		o.log.Info("no items need summarization")
		return res, nil
	}

	for i, item := range items {
		if i > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				return res, err
			}
		}

		update, err := o.summarizeOne(ctx, item)
		if err != nil {
			res.Failed++
			metrics.ObserveCompletion("summarize", "error")
			o.log.Warn("summarization failed",
				zap.Int64("item", item.ID),
				zap.String("title", item.Title),
				zap.Error(err))
			continue
		}
		metrics.ObserveCompletion("summarize", "ok")

		if opts.DryRun {
			o.log.Info("dry-run summary",
				zap.Int64("item", item.ID),
				zap.String("title", item.Title),
				zap.String("summary", update.SummaryStandard))
			res.Processed++
			continue
		}

		if err := o.store.UpdateItemSummary(ctx, item.ID, update); err != nil {
			return res, fmt.Errorf("write summary for item %d: %w", item.ID, err)
		}
		res.Processed++
		o.log.Info("item summarized",
			zap.Int64("item", item.ID),
			zap.String("title", item.Title),
			zap.Bool("significant", update.IsSignificant))
	}

	o.log.Info("summarization sweep finished",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (o *Orchestrator) summarizeOne(ctx context.Context, item civic.AgendaItem) (store.SummaryUpdate, error) {
	raw, err := o.completer.Complete(ctx, systemPrompt, buildPrompt(item))
	if err != nil {
		return store.SummaryUpdate{}, err
	}

	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return store.SummaryUpdate{}, err
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return store.SummaryUpdate{}, &llm.ResponseError{Kind: llm.KindMalformedJSON, Detail: err.Error()}
	}
	return validate(resp)
}

// buildPrompt prefers the raw extracted text over the short description and
// bounds what goes over the wire.
func buildPrompt(item civic.AgendaItem) string {
	content := item.RawContent
	if content == "" {
		content = item.Description
	}
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent]
	}
	prompt := "Agenda item title: " + item.Title + "\n\n" + content
	if item.Decision != "" {
		prompt += "\n\nCouncil decision: " + item.Decision
	}
	return prompt
}

// validate enforces the required keys and derives the primary category as
// the first entry of the category list. Nothing is written on failure.
func validate(resp response) (store.SummaryUpdate, error) {
	switch {
	case resp.SummarySimple == "":
		return store.SummaryUpdate{}, llm.MissingField("summary_simple")
	case resp.SummaryStandard == "":
		return store.SummaryUpdate{}, llm.MissingField("summary_standard")
	case resp.SummaryDetailed == "":
		return store.SummaryUpdate{}, llm.MissingField("summary_detailed")
	case resp.Impact == "":
		return store.SummaryUpdate{}, llm.MissingField("impact")
	}

	category := ""
	if len(resp.Categories) > 0 {
		category = resp.Categories[0]
	}

	return store.SummaryUpdate{
		SummarySimple:   resp.SummarySimple,
		SummaryStandard: resp.SummaryStandard,
		SummaryDetailed: resp.SummaryDetailed,
		Impact:          resp.Impact,
		Category:        category,
		Categories:      resp.Categories,
		Tags:            resp.Tags,
		IsSignificant:   resp.IsSignificant,
		BylawNumber:     resp.BylawNumber,
		Headline:        resp.Headline,
		Topic:           resp.Topic,
		KeyStats:        resp.KeyStats,
		CommunitySignal: resp.CommunitySignal,
	}, nil
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
