package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

type EarthChemAdapter struct {
	api         *apiClient
	viewUrlTmpl string
}

func NewEarthChemAdapter(apiUrl, viewUrlTmpl string) *EarthChemAdapter {
	return &EarthChemAdapter{
		api:         newApiClient(apiUrl, false),
		viewUrlTmpl: viewUrlTmpl,
	}
}

func (a *EarthChemAdapter) CreateRecord(ctx context.Context, accessToken string, metadata Record) (string, error) {
	var res struct {
		Id json.Number `json:"id"`
	}
	err := a.api.post(ctx, "ecl/submissions", accessToken, earthChemToWire(metadata), &res)
	if err != nil {
		return "", err
	}
	if res.Id.String() == "" {
		return "", fmt.Errorf("earthchem create response did not contain a submission id")
	}
	return res.Id.String(), nil
}

func (a *EarthChemAdapter) GetRecord(ctx context.Context, accessToken string, identifier string) (Record, error) {
	var record Record
	err := a.api.get(ctx, fmt.Sprintf("ecl/submissions/%v", identifier), accessToken, &record)
	if err != nil {
		return nil, err
	}
	return earthChemFromWire(record), nil
}

func (a *EarthChemAdapter) UpdateRecord(ctx context.Context, accessToken string, identifier string, metadata Record) (Record, error) {
	var record Record
	err := a.api.put(ctx, fmt.Sprintf("ecl/submissions/%v", identifier), accessToken, earthChemToWire(metadata), &record)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return a.GetRecord(ctx, accessToken, identifier)
	}
	return earthChemFromWire(record), nil
}

func (a *EarthChemAdapter) DeleteRecord(ctx context.Context, accessToken string, identifier string) error {
	return a.api.delete(ctx, fmt.Sprintf("ecl/submissions/%v", identifier), accessToken)
}

func (a *EarthChemAdapter) ToSubmission(record Record, identifier string) (schema.Submission, error) {
	title, err := requiredStringField(record, "title")
	if err != nil {
		return schema.Submission{}, err
	}
	if identifier == "" {
		return schema.Submission{}, fmt.Errorf("%w 'identifier'", ErrMappingFailed)
	}

	submission := schema.Submission{
		Id:             uuid.New(),
		RepositoryType: schema.RepoEarthChem,
		Identifier:     identifier,
		Title:          title,
		SubmittedAt:    time.Now().UTC(),
		Url:            a.ViewUrl(identifier),
		MetadataJson:   marshalRecord(record),
	}
	submission.SetAuthors(creatorNames(record["creators"]))

	return submission, nil
}

func (a *EarthChemAdapter) ViewUrl(identifier string) string {
	return fmt.Sprintf(a.viewUrlTmpl, identifier)
}

// The ECL api distinguishes a lead author from the remaining contributors,
// and has no fields for the broker's auxiliary metadata, which rides along
// json-encoded in the free text notes field. Both transformations round
// trip: earthChemFromWire(earthChemToWire(x)) preserves every field the
// canonical model tracks.

func earthChemToWire(metadata Record) Record {
	wire := make(Record, len(metadata))
	for key, value := range metadata {
		wire[key] = value
	}

	if creators, ok := wire["creators"].([]interface{}); ok && len(creators) > 0 {
		wire["leadAuthor"] = creators[0]
		wire["contributors"] = creators[1:]
		delete(wire, "creators")
	}

	if extra, ok := wire["extra"].(map[string]interface{}); ok {
		if notes, err := json.Marshal(extra); err == nil {
			wire["notes"] = string(notes)
		}
		delete(wire, "extra")
	}

	return wire
}

func earthChemFromWire(record Record) Record {
	out := make(Record, len(record))
	for key, value := range record {
		out[key] = value
	}

	if lead, ok := out["leadAuthor"]; ok {
		creators := []interface{}{lead}
		if contributors, ok := out["contributors"].([]interface{}); ok {
			creators = append(creators, contributors...)
		}
		out["creators"] = creators
		delete(out, "leadAuthor")
		delete(out, "contributors")
	}

	if notes, ok := out["notes"].(string); ok {
		var extra map[string]interface{}
		if err := json.Unmarshal([]byte(notes), &extra); err == nil {
			out["extra"] = extra
			delete(out, "notes")
		}
	}

	return out
}
