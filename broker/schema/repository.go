package schema

import "fmt"

// Supported external repositories. The set is closed: adapter dispatch,
// oauth configuration, and scrape selectors are all keyed by these values.
const (
	RepoHydroShare = "hydroshare"
	RepoEarthChem  = "earthchem"
	RepoZenodo     = "zenodo"

	// RepoExternal marks records hosted outside any integrated repository.
	// They live only in the submission ledger and have no scrapeable
	// landing page.
	RepoExternal = "external"
)

func RepositoryTypes() []string {
	return []string{RepoHydroShare, RepoEarthChem, RepoZenodo, RepoExternal}
}

func CheckValidRepository(repositoryType string) error {
	switch repositoryType {
	case RepoHydroShare, RepoEarthChem, RepoZenodo, RepoExternal:
		return nil
	default:
		return fmt.Errorf("invalid repository type '%v'", repositoryType)
	}
}
