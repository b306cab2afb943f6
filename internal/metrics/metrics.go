// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal       *prometheus.CounterVec
	meetingsScraped  *prometheus.CounterVec
	itemsUpserted    *prometheus.CounterVec
	scrapeRunsTotal  *prometheus.CounterVec
	completionsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendalens_fetch_total",
				Help: "Source fetches, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)
		meetingsScraped = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendalens_meetings_scraped_total",
				Help: "Meetings processed by the scrape coordinator, labeled by source.",
			},
			[]string{"source"},
		)
		itemsUpserted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendalens_items_upserted_total",
				Help: "Agenda item upserts, labeled by source and result (new/updated).",
			},
			[]string{"source", "result"},
		)
		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendalens_scrape_runs_total",
				Help: "Scrape runs closed, labeled by terminal status.",
			},
			[]string{"status"},
		)
		completionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendalens_completions_total",
				Help: "Completion-service calls, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)
	})
}

// ObserveFetch records one fetch attempt outcome for a source.
func ObserveFetch(source, outcome string) {
	if fetchTotal != nil {
		fetchTotal.WithLabelValues(source, outcome).Inc()
	}
}

// ObserveMeeting records one meeting processed for a source.
func ObserveMeeting(source string) {
	if meetingsScraped != nil {
		meetingsScraped.WithLabelValues(source).Inc()
	}
}

// ObserveItemUpsert records an item upsert as new or updated.
func ObserveItemUpsert(source string, isNew bool) {
	if itemsUpserted == nil {
		return
	}
	result := "updated"
	if isNew {
		result = "new"
	}
	itemsUpserted.WithLabelValues(source, result).Inc()
}

// ObserveRunClosed records a scrape run reaching a terminal status.
func ObserveRunClosed(status string) {
	if scrapeRunsTotal != nil {
		scrapeRunsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveCompletion records one completion-service call outcome.
func ObserveCompletion(stage, outcome string) {
	if completionsTotal != nil {
		completionsTotal.WithLabelValues(stage, outcome).Inc()
	}
}
