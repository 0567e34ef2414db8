package discovery

import (
	_ "embed"
	"log"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed clusters.yaml
var clusterTableYaml []byte

// ClusterTable maps funding award numbers to named organizational clusters.
// Multiple award numbers may map to the same cluster.
type ClusterTable map[string]string

func DefaultClusterTable() ClusterTable {
	var table ClusterTable
	if err := yaml.Unmarshal(clusterTableYaml, &table); err != nil {
		log.Panicf("error parsing embedded cluster table: %v", err)
	}
	return table
}

// Classify returns the distinct clusters matched by the given award
// identifiers. An identifier matches a table row when the award number
// occurs as a substring of the identifier, so forms like "EAR 2012669."
// still classify. The result is sorted for determinism.
func (t ClusterTable) Classify(awardIdentifiers []string) []string {
	matched := map[string]struct{}{}
	for _, identifier := range awardIdentifiers {
		for award, cluster := range t {
			if strings.Contains(identifier, award) {
				matched[cluster] = struct{}{}
			}
		}
	}

	clusters := make([]string, 0, len(matched))
	for cluster := range matched {
		clusters = append(clusters, cluster)
	}
	sort.Strings(clusters)
	return clusters
}
