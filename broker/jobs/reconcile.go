package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"submithub/broker/discovery"
	"submithub/broker/ledger"
	"submithub/broker/schema"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileRunsMetric      = promauto.NewCounter(prometheus.CounterOpts{Name: "discovery_reconcile_runs", Help: "Discovery reconciliation runs"})
	prunedEntriesMetric      = promauto.NewCounter(prometheus.CounterOpts{Name: "discovery_pruned_entries", Help: "Discovery entries pruned for deleted submissions"})
	upsertedEntriesMetric    = promauto.NewCounter(prometheus.CounterOpts{Name: "discovery_upserted_entries", Help: "Discovery entries written from scraped landing pages"})
	scrapeFailuresMetric     = promauto.NewCounter(prometheus.CounterOpts{Name: "discovery_scrape_failures", Help: "Landing page scrapes that returned errors"})
	undiscoverablePageMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "discovery_undiscoverable_pages", Help: "Landing pages that were unreachable or carried no structured data"})
)

const defaultWorkers = 4

// Reconciler keeps the discovery index consistent with the submission
// ledger: entries whose submission is gone are pruned, and every remaining
// submission's landing page is re-scraped into the index.
type Reconciler struct {
	ledger  *ledger.Ledger
	store   discovery.Store
	scraper *discovery.Scraper
	workers int
	stop    chan bool
}

func NewReconciler(ledger *ledger.Ledger, store discovery.Store, scraper *discovery.Scraper) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		store:   store,
		scraper: scraper,
		workers: defaultWorkers,
		stop:    make(chan bool),
	}
}

// RunOnce performs a single prune+sync pass. Per submission failures are
// logged and skipped so one bad landing page cannot stall the rest of the
// index.
func (r *Reconciler) RunOnce(ctx context.Context) {
	reconcileRunsMetric.Inc()

	r.prune(ctx)
	r.sync(ctx)
}

func (r *Reconciler) prune(ctx context.Context) {
	identifiers, err := r.store.Identifiers(ctx)
	if err != nil {
		slog.Error("reconcile: error listing discovery identifiers", "error", err)
		return
	}

	for _, identifier := range identifiers {
		exists, err := r.ledger.IdentifierExists(identifier)
		if err != nil {
			slog.Error("reconcile: error checking submission", "identifier", identifier, "error", err)
			continue
		}
		if exists {
			continue
		}

		if err := r.store.Delete(ctx, identifier); err != nil {
			slog.Error("reconcile: error pruning discovery entry", "identifier", identifier, "error", err)
			continue
		}
		prunedEntriesMetric.Inc()
		slog.Info("reconcile: pruned discovery entry for deleted submission", "identifier", identifier)
	}
}

func (r *Reconciler) sync(ctx context.Context) {
	submissions, err := r.ledger.ListAll()
	if err != nil {
		slog.Error("reconcile: error listing submissions", "error", err)
		return
	}

	queue := make(chan schema.Submission)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for submission := range queue {
				r.syncSubmission(ctx, submission)
			}
		}()
	}

	for _, submission := range submissions {
		// External submissions point at arbitrary pages with no
		// structured data contract, they are not indexed.
		if submission.RepositoryType == schema.RepoExternal || submission.Url == "" {
			continue
		}
		queue <- submission
	}
	close(queue)

	wg.Wait()
}

func (r *Reconciler) syncSubmission(ctx context.Context, submission schema.Submission) {
	doc, err := r.scraper.Scrape(ctx, submission.Url, submission.RepositoryType)
	if err != nil {
		scrapeFailuresMetric.Inc()
		slog.Error("reconcile: error scraping landing page", "identifier", submission.Identifier, "url", submission.Url, "error", err)
		return
	}
	if doc == nil {
		undiscoverablePageMetric.Inc()
		return
	}

	entry := discovery.Entry{
		Identifier:     submission.Identifier,
		RepositoryType: submission.RepositoryType,
		Document:       doc,
		ScrapedAt:      time.Now().UTC(),
	}
	if err := r.store.Upsert(ctx, entry); err != nil {
		slog.Error("reconcile: error writing discovery entry", "identifier", submission.Identifier, "error", err)
		return
	}
	upsertedEntriesMetric.Inc()
}

// Run executes reconciliation passes on the given interval until Stop is
// called.
func (r *Reconciler) Run(interval time.Duration) {
	slog.Info("reconcile: starting", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stop:
			slog.Info("reconcile: process stopped")
			return
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stop)
}
