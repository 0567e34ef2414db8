package tests

import (
	"errors"
	"testing"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

func TestSubmissionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository(schema.RepoHydroShare, "hs-grant"); err != nil {
		t.Fatal(err)
	}

	res, err := user.createMetadata(schema.RepoHydroShare, map[string]interface{}{
		"title":    "Watershed Data",
		"creators": []interface{}{"Ada Lovelace", "Grace Hopper"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Submission.Identifier == "" {
		t.Fatal("created submission missing identifier")
	}
	if res.Submission.Title != "Watershed Data" {
		t.Fatalf("incorrect title %v", res.Submission.Title)
	}
	if res.Submission.RepositoryType != schema.RepoHydroShare {
		t.Fatalf("incorrect repository %v", res.Submission.RepositoryType)
	}

	identifier := res.Submission.Identifier

	record, err := user.getMetadata(schema.RepoHydroShare, identifier)
	if err != nil {
		t.Fatal(err)
	}
	if record["title"] != "Watershed Data" {
		t.Fatalf("incorrect record title %v", record["title"])
	}

	updated, err := user.updateMetadata(schema.RepoHydroShare, identifier, map[string]interface{}{
		"title":    "Watershed Data v2",
		"creators": []interface{}{"Ada Lovelace"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Submission.Title != "Watershed Data v2" {
		t.Fatalf("incorrect title after update %v", updated.Submission.Title)
	}
	if updated.Submission.Identifier != identifier {
		t.Fatalf("update changed identifier: %v vs %v", updated.Submission.Identifier, identifier)
	}

	submissions, err := user.listSubmissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submissions))
	}
	if submissions[0].Title != "Watershed Data v2" {
		t.Fatalf("incorrect listed title %v", submissions[0].Title)
	}

	if err := user.deleteMetadata(schema.RepoHydroShare, identifier); err != nil {
		t.Fatal(err)
	}

	submissions, err = user.listSubmissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(submissions) != 0 {
		t.Fatalf("expected no submissions after delete, got %d", len(submissions))
	}

	if _, err := user.getMetadata(schema.RepoHydroShare, identifier); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCreateWithoutRepositoryAuthorization(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	_, err := user.createMetadata(schema.RepoZenodo, map[string]interface{}{"title": "Deposition"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository(schema.RepoEarthChem, "ec-grant"); err != nil {
		t.Fatal(err)
	}

	env.expireToken(t, user, schema.RepoEarthChem)

	_, err := user.createMetadata(schema.RepoEarthChem, map[string]interface{}{"title": "Geochem Samples"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error for expired token, got %v", err)
	}
}

func TestExternalSubmission(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	// External submissions need no repository authorization.
	res, err := user.createMetadata(schema.RepoExternal, map[string]interface{}{
		"title":    "External Dataset",
		"url":      "https://example.org/data",
		"creators": []interface{}{"Ada Lovelace"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(res.Submission.Identifier); err != nil {
		t.Fatalf("external identifier should be a uuid, got %v", res.Submission.Identifier)
	}
	if res.Submission.Url != "https://example.org/data" {
		t.Fatalf("incorrect url %v", res.Submission.Url)
	}

	// Reads come from the stored copy, there is no remote record.
	record, err := user.getMetadata(schema.RepoExternal, res.Submission.Identifier)
	if err != nil {
		t.Fatal(err)
	}
	if record["title"] != "External Dataset" {
		t.Fatalf("incorrect stored title %v", record["title"])
	}
	if record["url"] != "https://example.org/data" {
		t.Fatalf("incorrect stored url %v", record["url"])
	}
}

func TestSubmissionOwnership(t *testing.T) {
	env := setupTestEnv(t)

	userA := env.newUser(t, "0000-0001-0000-0001")
	userB := env.newUser(t, "0000-0001-0000-0002")

	if _, err := userA.authorizeRepository(schema.RepoZenodo, "a-grant"); err != nil {
		t.Fatal(err)
	}
	if _, err := userB.authorizeRepository(schema.RepoZenodo, "b-grant"); err != nil {
		t.Fatal(err)
	}

	res, err := userA.createMetadata(schema.RepoZenodo, map[string]interface{}{"title": "Deposition"})
	if err != nil {
		t.Fatal(err)
	}
	identifier := res.Submission.Identifier

	if _, err := userB.getMetadata(schema.RepoZenodo, identifier); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden reading another user's submission, got %v", err)
	}
	if _, err := userB.updateMetadata(schema.RepoZenodo, identifier, map[string]interface{}{"title": "Taken"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden updating another user's submission, got %v", err)
	}
	if err := userB.deleteMetadata(schema.RepoZenodo, identifier); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden deleting another user's submission, got %v", err)
	}

	// The owner is unaffected.
	if _, err := userA.getMetadata(schema.RepoZenodo, identifier); err != nil {
		t.Fatal(err)
	}
}

func TestMetadataUnknownRepository(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.createMetadata("dataverse", map[string]interface{}{"title": "T"}); err == nil {
		t.Fatal("expected error for unknown repository")
	}
}
