// Package feedback sweeps meetings holding a correspondence sample, asks
// the completion service for a sentiment breakdown, matches the result to
// one of the meeting's agenda items, and upserts the feedback record.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/llm"
	"github.com/opencouncil/agendalens/internal/metrics"
	"github.com/opencouncil/agendalens/internal/store"
)

const systemPrompt = `You analyze public correspondence submitted to a municipal council.
Respond with a single JSON object, no prose, with these keys:
  feedback_count     your estimate of distinct submissions, anchored to the hint
  sentiment_summary  one paragraph describing the overall sentiment
  support_count      submissions in support
  oppose_count       submissions opposed
  neutral_count      submissions neither for nor against
  topic              the main subject the correspondence addresses
  bylaw_number       bylaw number as a string if the correspondence cites one, else omit
  positions          array of {stance, sentiment, count, detail}; sentiment is
                     one of "support", "oppose", "neutral"`

// Options bound one sweep.
type Options struct {
	DryRun bool
	// Force reprocesses meetings that already produced feedback.
	Force bool
	Limit int
}

// Result reports the sweep outcome.
type Result struct {
	Processed int
	Failed    int
}

// Orchestrator runs the correspondence-sentiment sweep.
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

type position struct {
	Stance    string `json:"stance"`
	Sentiment string `json:"sentiment"`
	Count     int    `json:"count"`
	Detail    string `json:"detail"`
}

type response struct {
	FeedbackCount    int        `json:"feedback_count"`
	SentimentSummary string     `json:"sentiment_summary"`
	SupportCount     int        `json:"support_count"`
	OpposeCount      int        `json:"oppose_count"`
	NeutralCount     int        `json:"neutral_count"`
	Topic            string     `json:"topic"`
	BylawNumber      string     `json:"bylaw_number"`
	Positions        []position `json:"positions"`
}

// Run selects meetings with an unprocessed correspondence sample and
// processes each one. Meeting-level AI failures are logged and counted;
// only a persistence failure aborts the sweep.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	meetings, err := o.store.MeetingsWithCorrespondence(ctx, opts.Limit, opts.Force)
	if err != nil {
		return res, fmt.Errorf("select meetings with correspondence: %w", err)
	}
	if len(meetings) == 0 {
		o.log.Info("no correspondence awaiting analysis")
		return res, nil
	}

	for i, meeting := range meetings {
		if i > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				return res, err
			}
		}

		items, err := o.store.ItemsForMeeting(ctx, meeting.ID)
		if err != nil {
			return res, fmt.Errorf("load items for meeting %d: %w", meeting.ID, err)
		}
		if len(items) == 0 {
			res.Failed++
			o.log.Warn("meeting has correspondence but no items",
				zap.Int64("meeting", meeting.ID))
			continue
		}

		fb, err := o.analyzeOne(ctx, meeting)
		if err != nil {
			res.Failed++
			metrics.ObserveCompletion("feedback", "error")
			o.log.Warn("correspondence analysis failed",
				zap.Int64("meeting", meeting.ID),
				zap.Error(err))
			continue
		}
		metrics.ObserveCompletion("feedback", "ok")

		item := matchItem(items, fb.BylawNumber, fb.Topic)

		if opts.DryRun {
			o.log.Info("dry-run feedback",
				zap.Int64("meeting", meeting.ID),
				zap.Int64("item", item.ID),
				zap.Int("count", fb.FeedbackCount),
				zap.String("summary", fb.SentimentSummary))
			res.Processed++
			continue
		}

		record := toFeedback(item.ID, fb)
		if err := o.store.UpsertFeedback(ctx, record); err != nil {
			return res, fmt.Errorf("write feedback for item %d: %w", item.ID, err)
		}
		res.Processed++
		o.log.Info("feedback recorded",
			zap.Int64("meeting", meeting.ID),
			zap.Int64("item", item.ID),
			zap.String("title", item.Title),
			zap.Int("count", record.FeedbackCount))
	}

	o.log.Info("feedback sweep finished",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (o *Orchestrator) analyzeOne(ctx context.Context, meeting civic.Meeting) (response, error) {
	raw, err := o.completer.Complete(ctx, systemPrompt, buildPrompt(meeting))
	if err != nil {
		return response{}, err
	}

	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return response{}, err
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return response{}, &llm.ResponseError{Kind: llm.KindMalformedJSON, Detail: err.Error()}
	}
	if resp.SentimentSummary == "" {
		return response{}, llm.MissingField("sentiment_summary")
	}

	sanitize(&resp)
	return resp, nil
}

// buildPrompt pairs the bounded sample with the sampler's letter-count hint
// so the model anchors its estimate instead of inventing one from the
// truncated text.
func buildPrompt(meeting civic.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The package for the %s council meeting contains approximately %d letters of public correspondence",
		meeting.Date.Format("January 2, 2006"), meeting.CorrespondenceLetters)
	if meeting.CorrespondencePages > 0 {
		fmt.Fprintf(&b, " across %d pages", meeting.CorrespondencePages)
	}
	b.WriteString(". Some letters are scanned images and do not appear in the extracted text below; keep the stated letter count in mind when estimating totals.\n\n")
	b.WriteString(meeting.RawCorrespondence)
	return b.String()
}

// sanitize clamps counts to non-negative, drops positions with an
// unrecognized sentiment or empty stance, and orders positions by count
// descending.
func sanitize(resp *response) {
	resp.FeedbackCount = clamp(resp.FeedbackCount)
	resp.SupportCount = clamp(resp.SupportCount)
	resp.OpposeCount = clamp(resp.OpposeCount)
	resp.NeutralCount = clamp(resp.NeutralCount)

	kept := resp.Positions[:0]
	for _, p := range resp.Positions {
		switch civic.Sentiment(p.Sentiment) {
		case civic.SentimentSupport, civic.SentimentOppose, civic.SentimentNeutral:
		default:
			continue
		}
		if strings.TrimSpace(p.Stance) == "" {
			continue
		}
		p.Count = clamp(p.Count)
		kept = append(kept, p)
	}
	resp.Positions = kept
	sort.SliceStable(resp.Positions, func(i, j int) bool {
		return resp.Positions[i].Count > resp.Positions[j].Count
	})
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// matchItem picks the agenda item the correspondence concerns: exact bylaw
// number first, then word overlap against titles, then the meeting's first
// item so the analysis is never discarded.
func matchItem(items []civic.AgendaItem, bylawNumber, topic string) civic.AgendaItem {
	bylawNumber = strings.TrimSpace(bylawNumber)
	if bylawNumber != "" {
		for _, item := range items {
			if item.BylawNumber == bylawNumber || strings.Contains(item.Title, bylawNumber) {
				return item
			}
		}
	}

	if words := topicWords(topic); len(words) > 0 {
		best := -1
		bestScore := 0
		for i, item := range items {
			score := overlap(words, topicWords(item.Title))
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			return items[best]
		}
	}

	return items[0]
}

func topicWords(s string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;()\"'")
		if len(w) > 3 {
			words[w] = struct{}{}
		}
	}
	return words
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func toFeedback(itemID int64, resp response) civic.PublicFeedback {
	positions := make([]civic.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		positions = append(positions, civic.Position{
			Stance:    p.Stance,
			Sentiment: civic.Sentiment(p.Sentiment),
			Count:     p.Count,
			Detail:    p.Detail,
		})
	}
	return civic.PublicFeedback{
		ItemID:           itemID,
		FeedbackCount:    resp.FeedbackCount,
		SentimentSummary: resp.SentimentSummary,
		SupportCount:     resp.SupportCount,
		OpposeCount:      resp.OpposeCount,
		NeutralCount:     resp.NeutralCount,
		Positions:        positions,
	}
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
