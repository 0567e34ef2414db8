package repository

import (
	"context"
	"fmt"
	"time"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

// ExternalAdapter backs records hosted outside any integrated repository.
// There is no remote api: the ledger is the only store, so create mints an
// identifier, update echoes the metadata, and delete is a no-op. Reads must
// go through the ledger.
type ExternalAdapter struct{}

func NewExternalAdapter() *ExternalAdapter {
	return &ExternalAdapter{}
}

func (a *ExternalAdapter) CreateRecord(ctx context.Context, accessToken string, metadata Record) (string, error) {
	return uuid.New().String(), nil
}

func (a *ExternalAdapter) GetRecord(ctx context.Context, accessToken string, identifier string) (Record, error) {
	return nil, fmt.Errorf("external records have no remote api, read the submission ledger instead")
}

func (a *ExternalAdapter) UpdateRecord(ctx context.Context, accessToken string, identifier string, metadata Record) (Record, error) {
	return metadata, nil
}

func (a *ExternalAdapter) DeleteRecord(ctx context.Context, accessToken string, identifier string) error {
	return nil
}

func (a *ExternalAdapter) ToSubmission(record Record, identifier string) (schema.Submission, error) {
	title, err := requiredStringField(record, "title")
	if err != nil {
		return schema.Submission{}, err
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
		RepositoryType: schema.RepoExternal,
		Identifier:     identifier,
		Title:          title,
		SubmittedAt:    submittedAt,
		Url:            stringField(record, "url"),
		MetadataJson:   marshalRecord(record),
	}
	submission.SetAuthors(creatorNames(record["creators"]))

	return submission, nil
}

func (a *ExternalAdapter) ViewUrl(identifier string) string {
	return ""
}
