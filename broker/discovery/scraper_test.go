package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"submithub/broker/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hydrosharePage = `<html><head>
<script id="schemaorg" type="application/ld+json">
{
  "name": "Watershed Data",
  "keywords": "water, soil",
  "funding": [{"identifier": "EAR 2012669.", "name": "Dynamic Water grant"}]
}
</script>
</head><body></body></html>`

const genericPage = `<html><head>
<script type="application/ld+json">
{"name": "Deposition", "license": "CC-BY-4.0"}
</script>
</head><body></body></html>`

func TestScrapeHydrosharePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hydrosharePage)
	}))
	defer server.Close()

	scraper := NewScraper(DefaultClusterTable())

	doc, err := scraper.Scrape(context.Background(), server.URL, schema.RepoHydroShare)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "Watershed Data", doc["name"])
	assert.Equal(t, []interface{}{"water", "soil"}, doc["keywords"])
	assert.Equal(t, []string{"Dynamic Water Cluster"}, doc["clusters"])
}

func TestScrapeGenericPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, genericPage)
	}))
	defer server.Close()

	scraper := NewScraper(DefaultClusterTable())

	doc, err := scraper.Scrape(context.Background(), server.URL, schema.RepoZenodo)
	require.NoError(t, err)
	require.NotNil(t, doc)

	license, ok := doc["license"].(Document)
	require.True(t, ok)
	assert.Equal(t, "CC-BY-4.0", license["text"])
	assert.Empty(t, doc["clusters"])
}

func TestScrapeUnreachablePageIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	scraper := NewScraper(DefaultClusterTable())

	doc, err := scraper.Scrape(context.Background(), server.URL, schema.RepoZenodo)
	require.NoError(t, err)
	assert.Nil(t, doc)

	// Same for a server that is not running at all.
	server.Close()
	doc, err = scraper.Scrape(context.Background(), server.URL, schema.RepoZenodo)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestScrapePageWithoutStructuredData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>plain page</body></html>")
	}))
	defer server.Close()

	scraper := NewScraper(DefaultClusterTable())

	doc, err := scraper.Scrape(context.Background(), server.URL, schema.RepoEarthChem)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestScrapeMalformedStructuredData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><script type="application/ld+json">{not json</script></head></html>`)
	}))
	defer server.Close()

	scraper := NewScraper(DefaultClusterTable())

	_, err := scraper.Scrape(context.Background(), server.URL, schema.RepoEarthChem)
	assert.Error(t, err)
}
