package tests

import (
	"errors"
	"testing"

	"submithub/broker/schema"

	"github.com/google/uuid"
)

func createSubmission(t *testing.T, c client, repositoryType, title string) string {
	res, err := c.createMetadata(repositoryType, map[string]interface{}{
		"title":    title,
		"creators": []interface{}{"Ada Lovelace"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return res.Submission.Identifier
}

func TestSubmissionReport(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)

	userA := env.newUser(t, "0000-0001-0000-0001")
	userB := env.newUser(t, "0000-0001-0000-0002")

	if _, err := userA.authorizeRepository(schema.RepoHydroShare, "a-grant"); err != nil {
		t.Fatal(err)
	}
	if _, err := userB.authorizeRepository(schema.RepoZenodo, "b-grant"); err != nil {
		t.Fatal(err)
	}

	createSubmission(t, userA, schema.RepoHydroShare, "Watershed One")
	createSubmission(t, userA, schema.RepoHydroShare, "Watershed Two")
	createSubmission(t, userB, schema.RepoZenodo, "Deposition")
	createSubmission(t, userB, schema.RepoExternal, "External Dataset")

	report, err := admin.submissionReport()
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 4 {
		t.Fatalf("expected 4 submissions in report, got %d", report.Total)
	}
	if report.CountByRepository[schema.RepoHydroShare] != 2 {
		t.Fatalf("expected 2 hydroshare submissions, got %d", report.CountByRepository[schema.RepoHydroShare])
	}
	if report.CountByRepository[schema.RepoZenodo] != 1 || report.CountByRepository[schema.RepoExternal] != 1 {
		t.Fatalf("incorrect report counts %v", report.CountByRepository)
	}
}

func TestReportRequiresAdmin(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.submissionReport(); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	c := env.newClient()
	if _, err := c.submissionReport(); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestTransferSubmissions(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)

	userA := env.newUser(t, "0000-0001-0000-0001")
	userB := env.newUser(t, "0000-0001-0000-0002")

	if _, err := userA.authorizeRepository(schema.RepoEarthChem, "a-grant"); err != nil {
		t.Fatal(err)
	}
	createSubmission(t, userA, schema.RepoEarthChem, "Geochem One")
	createSubmission(t, userA, schema.RepoEarthChem, "Geochem Two")

	if err := admin.transferSubmissions(userA.userId, userB.userId); err != nil {
		t.Fatal(err)
	}

	remaining, err := userA.listSubmissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no submissions left for transfer source, got %d", len(remaining))
	}

	received, err := userB.listSubmissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 transferred submissions, got %d", len(received))
	}
}

func TestTransferRequiresAdmin(t *testing.T) {
	env := setupTestEnv(t)

	userA := env.newUser(t, "0000-0001-0000-0001")
	userB := env.newUser(t, "0000-0001-0000-0002")

	if err := userA.transferSubmissions(userA.userId, userB.userId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestTransferValidation(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)

	user := env.newUser(t, "0000-0001-2345-6789")

	if err := admin.transferSubmissions(user.userId, user.userId); err == nil {
		t.Fatal("expected error transferring submissions to the same user")
	}

	if err := admin.transferSubmissions(user.userId, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}
