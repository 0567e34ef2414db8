package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"submithub/broker/schema"

	"github.com/PuerkitoBio/goquery"
)

const scrapeTimeout = 15 * time.Second

// Scraper fetches a submission's public landing page and extracts the
// embedded json-ld structured data block.
type Scraper struct {
	client   *http.Client
	clusters ClusterTable
}

func NewScraper(clusters ClusterTable) *Scraper {
	return &Scraper{
		client:   &http.Client{Timeout: scrapeTimeout},
		clusters: clusters,
	}
}

func jsonLdSelector(repositoryType string) string {
	// Hydroshare tags its structured data block with an element id, the
	// other repositories only mark the script mime type.
	if repositoryType == schema.RepoHydroShare {
		return "#schemaorg"
	}
	return `script[type="application/ld+json"]`
}

// Scrape returns the normalized structured metadata for a landing page, with
// the computed clusters attached. A failed fetch (network error, timeout, or
// non-200 response) means the page is not discoverable yet, which is not an
// error: the result is simply nil and the caller retries on a later run.
func (s *Scraper) Scrape(ctx context.Context, pageUrl, repositoryType string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request for landing page %v: %w", pageUrl, err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		slog.Info("landing page not reachable", "url", pageUrl, "error", err)
		return nil, nil
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		slog.Info("landing page not discoverable", "url", pageUrl, "status", res.StatusCode)
		return nil, nil
	}

	page, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing landing page %v: %w", pageUrl, err)
	}

	block := page.Find(jsonLdSelector(repositoryType)).First()
	if block.Length() == 0 {
		slog.Info("landing page has no structured data block", "url", pageUrl)
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal([]byte(block.Text()), &doc); err != nil {
		return nil, fmt.Errorf("error parsing structured data block from %v: %w", pageUrl, err)
	}

	doc = Normalize(doc)
	doc["clusters"] = s.clusters.Classify(FundingAwards(doc))

	return doc, nil
}
