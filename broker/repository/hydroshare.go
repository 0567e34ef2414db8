package repository

import (
	"context"
	"fmt"
	"time"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

type HydroShareAdapter struct {
	api         *apiClient
	viewUrlTmpl string
}

func NewHydroShareAdapter(apiUrl, viewUrlTmpl string) *HydroShareAdapter {
	return &HydroShareAdapter{
		api:         newApiClient(apiUrl, false),
		viewUrlTmpl: viewUrlTmpl,
	}
}

func (a *HydroShareAdapter) CreateRecord(ctx context.Context, accessToken string, metadata Record) (string, error) {
	var res struct {
		ResourceId string `json:"resource_id"`
	}
	err := a.api.post(ctx, "hsapi/resource/", accessToken, metadata, &res)
	if err != nil {
		return "", err
	}
	if res.ResourceId == "" {
		return "", fmt.Errorf("hydroshare create response did not contain a resource id")
	}
	return res.ResourceId, nil
}

func (a *HydroShareAdapter) GetRecord(ctx context.Context, accessToken string, identifier string) (Record, error) {
	var record Record
	err := a.api.get(ctx, fmt.Sprintf("hsapi/resource/%v/scimeta/elements/", identifier), accessToken, &record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *HydroShareAdapter) UpdateRecord(ctx context.Context, accessToken string, identifier string, metadata Record) (Record, error) {
	err := a.api.put(ctx, fmt.Sprintf("hsapi/resource/%v/scimeta/elements/", identifier), accessToken, metadata, nil)
	if err != nil {
		return nil, err
	}
	return a.GetRecord(ctx, accessToken, identifier)
}

func (a *HydroShareAdapter) DeleteRecord(ctx context.Context, accessToken string, identifier string) error {
	return a.api.delete(ctx, fmt.Sprintf("hsapi/resource/%v/", identifier), accessToken)
}

// ToSubmission maps a hydroshare science metadata record. The record's own
// identifier field is a full url, the external identifier is its final path
// segment.
func (a *HydroShareAdapter) ToSubmission(record Record, identifier string) (schema.Submission, error) {
	title, err := requiredStringField(record, "title")
	if err != nil {
		return schema.Submission{}, err
	}

	if recordIdentifier := stringField(record, "identifier"); recordIdentifier != "" {
		identifier = lastPathSegment(recordIdentifier)
	}
	if identifier == "" {
		return schema.Submission{}, fmt.Errorf("%w 'identifier'", ErrMappingFailed)
	}

	submittedAt, ok := parseTimeField(record, "modified")
	if !ok {
		submittedAt = time.Now().UTC()
	}

	submission := schema.Submission{
		Id:             uuid.New(),
		RepositoryType: schema.RepoHydroShare,
		Identifier:     identifier,
		Title:          title,
		SubmittedAt:    submittedAt,
		Url:            a.ViewUrl(identifier),
		MetadataJson:   marshalRecord(record),
	}
	submission.SetAuthors(creatorNames(record["creators"]))

	return submission, nil
}

func (a *HydroShareAdapter) ViewUrl(identifier string) string {
	return fmt.Sprintf(a.viewUrlTmpl, identifier)
}
