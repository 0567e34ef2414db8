package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

type ZenodoAdapter struct {
	api         *apiClient
	viewUrlTmpl string
}

func NewZenodoAdapter(apiUrl, viewUrlTmpl string) *ZenodoAdapter {
	// Zenodo authenticates with an access_token query parameter.
	return &ZenodoAdapter{
		api:         newApiClient(apiUrl, true),
		viewUrlTmpl: viewUrlTmpl,
	}
}

func (a *ZenodoAdapter) CreateRecord(ctx context.Context, accessToken string, metadata Record) (string, error) {
	var res struct {
		Id json.Number `json:"id"`
	}
	err := a.api.post(ctx, "api/deposit/depositions", accessToken, zenodoToWire(metadata), &res)
	if err != nil {
		return "", err
	}
	if res.Id.String() == "" {
		return "", fmt.Errorf("zenodo create response did not contain a deposition id")
	}
	return res.Id.String(), nil
}

func (a *ZenodoAdapter) GetRecord(ctx context.Context, accessToken string, identifier string) (Record, error) {
	var record Record
	err := a.api.get(ctx, fmt.Sprintf("api/deposit/depositions/%v", identifier), accessToken, &record)
	if err != nil {
		return nil, err
	}
	return zenodoFromWire(record), nil
}

func (a *ZenodoAdapter) UpdateRecord(ctx context.Context, accessToken string, identifier string, metadata Record) (Record, error) {
	var record Record
	err := a.api.put(ctx, fmt.Sprintf("api/deposit/depositions/%v", identifier), accessToken, zenodoToWire(metadata), &record)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return a.GetRecord(ctx, accessToken, identifier)
	}
	return zenodoFromWire(record), nil
}

func (a *ZenodoAdapter) DeleteRecord(ctx context.Context, accessToken string, identifier string) error {
	return a.api.delete(ctx, fmt.Sprintf("api/deposit/depositions/%v", identifier), accessToken)
}

func (a *ZenodoAdapter) ToSubmission(record Record, identifier string) (schema.Submission, error) {
	title, err := requiredStringField(record, "title")
	if err != nil {
		return schema.Submission{}, err
	}
	if identifier == "" {
		return schema.Submission{}, fmt.Errorf("%w 'identifier'", ErrMappingFailed)
	}

	submission := schema.Submission{
		Id:             uuid.New(),
		RepositoryType: schema.RepoZenodo,
		Identifier:     identifier,
		Title:          title,
		SubmittedAt:    time.Now().UTC(),
		Url:            a.ViewUrl(identifier),
		MetadataJson:   marshalRecord(record),
	}
	submission.SetAuthors(creatorNames(record["creators"]))

	return submission, nil
}

func (a *ZenodoAdapter) ViewUrl(identifier string) string {
	return fmt.Sprintf(a.viewUrlTmpl, identifier)
}

// The deposition api nests the caller's metadata under a "metadata" envelope
// key. zenodoFromWire(zenodoToWire(x)) == x for the tracked fields.

func zenodoToWire(metadata Record) Record {
	return Record{"metadata": metadata}
}

func zenodoFromWire(record Record) Record {
	if metadata, ok := record["metadata"].(map[string]interface{}); ok {
		return metadata
	}
	return record
}
