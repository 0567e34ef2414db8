package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMatchesAwardWithinIdentifier(t *testing.T) {
	table := DefaultClusterTable()

	// Award numbers are often embedded in longer grant strings.
	clusters := table.Classify([]string{"EAR 2012669."})
	assert.Equal(t, []string{"Dynamic Water Cluster"}, clusters)
}

func TestClassifyMultipleAwards(t *testing.T) {
	table := DefaultClusterTable()

	clusters := table.Classify([]string{"2012073", "2012264", "2011439"})
	assert.Equal(t, []string{"Bedrock Cluster", "Big Data Cluster"}, clusters)
}

func TestClassifyDeduplicates(t *testing.T) {
	table := DefaultClusterTable()

	// Two awards mapping to the same cluster yield one entry.
	clusters := table.Classify([]string{"2012669", "2012796"})
	assert.Equal(t, []string{"Dynamic Water Cluster"}, clusters)
}

func TestClassifyNoMatches(t *testing.T) {
	table := DefaultClusterTable()

	assert.Empty(t, table.Classify([]string{"9999999"}))
	assert.Empty(t, table.Classify(nil))
}
