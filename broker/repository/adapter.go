package repository

import (
	"context"
	"errors"
	"fmt"

	"submithub/broker/schema"
)

// Record is a repository metadata document. The broker treats the contents
// as opaque except for the fields the canonical submission tracks.
type Record = map[string]interface{}

// RequestError is returned whenever a repository api responds with a non-2xx
// status. The original status and body are preserved so callers can surface
// an actionable message; no retries happen at this layer.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("repository request returned status %d: %v", e.StatusCode, e.Body)
}

var (
	ErrMappingFailed     = errors.New("record is missing required field")
	ErrUnknownRepository = errors.New("unknown repository type")
)

// Adapter is the capability surface implemented once per supported
// repository. All network calls carry a bounded timeout via ctx plus the
// client timeout, and writes are at-most-once: a failed create may or may
// not have landed remotely.
type Adapter interface {
	CreateRecord(ctx context.Context, accessToken string, metadata Record) (string, error)

	GetRecord(ctx context.Context, accessToken string, identifier string) (Record, error)

	UpdateRecord(ctx context.Context, accessToken string, identifier string, metadata Record) (Record, error)

	DeleteRecord(ctx context.Context, accessToken string, identifier string) error

	// ToSubmission maps a repository record into the canonical submission.
	// Absent optional fields map to zero values; an absent title or
	// identifier yields an error wrapping ErrMappingFailed.
	ToSubmission(record Record, identifier string) (schema.Submission, error)

	ViewUrl(identifier string) string
}

// Endpoints holds the base urls for each repository api and public landing
// page. Tests point these at local stub servers.
type Endpoints struct {
	HydroShareApi  string
	HydroShareView string
	EarthChemApi   string
	EarthChemView  string
	ZenodoApi      string
	ZenodoView     string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		HydroShareApi:  "https://www.hydroshare.org",
		HydroShareView: "https://www.hydroshare.org/resource/%v",
		EarthChemApi:   "https://ecl.earthchem.org",
		EarthChemView:  "https://ecl.earthchem.org/view.php?id=%v",
		ZenodoApi:      "https://zenodo.org",
		ZenodoView:     "https://zenodo.org/record/%v",
	}
}

// Registry is a closed dispatch table from repository type to adapter. Every
// value of schema.RepositoryTypes has an entry, so a lookup failure means
// the caller passed an unvalidated repository string.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(endpoints Endpoints) *Registry {
	return &Registry{
		adapters: map[string]Adapter{
			schema.RepoHydroShare: NewHydroShareAdapter(endpoints.HydroShareApi, endpoints.HydroShareView),
			schema.RepoEarthChem:  NewEarthChemAdapter(endpoints.EarthChemApi, endpoints.EarthChemView),
			schema.RepoZenodo:     NewZenodoAdapter(endpoints.ZenodoApi, endpoints.ZenodoView),
			schema.RepoExternal:   NewExternalAdapter(),
		},
	}
}

func (r *Registry) Adapter(repositoryType string) (Adapter, error) {
	adapter, ok := r.adapters[repositoryType]
	if !ok {
		return nil, fmt.Errorf("%w '%v'", ErrUnknownRepository, repositoryType)
	}
	return adapter, nil
}
