package tests

import (
	"errors"
	"slices"
	"testing"

	"submithub/broker/schema"
)

func TestRepositoryAuthorization(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	token, err := user.authorizeRepository(schema.RepoHydroShare, "hs-grant")
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "repo-token-hs-grant" {
		t.Fatalf("unexpected access token %v", token.AccessToken)
	}
	if token.Expired {
		t.Fatal("fresh token should not be expired")
	}
	if token.ExpiresAt == nil {
		t.Fatal("token exchange should record an expiry")
	}

	fetched, err := user.repositoryToken(schema.RepoHydroShare)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.AccessToken != token.AccessToken {
		t.Fatalf("token mismatch: %v vs %v", fetched.AccessToken, token.AccessToken)
	}

	if _, err := user.repositoryToken(schema.RepoZenodo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unauthorized repository, got %v", err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(info.AuthorizedRepositories, schema.RepoHydroShare) {
		t.Fatalf("hydroshare missing from authorized repositories %v", info.AuthorizedRepositories)
	}
}

func TestReauthorizationReplacesToken(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository(schema.RepoZenodo, "first-grant"); err != nil {
		t.Fatal(err)
	}
	token, err := user.authorizeRepository(schema.RepoZenodo, "second-grant")
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "repo-token-second-grant" {
		t.Fatalf("unexpected access token %v", token.AccessToken)
	}

	fetched, err := user.repositoryToken(schema.RepoZenodo)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.AccessToken != "repo-token-second-grant" {
		t.Fatalf("reauthorization did not replace token: %v", fetched.AccessToken)
	}
}

func TestRevokeRepositoryToken(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository(schema.RepoEarthChem, "ec-grant"); err != nil {
		t.Fatal(err)
	}

	if err := user.revokeRepository(schema.RepoEarthChem); err != nil {
		t.Fatal(err)
	}

	if _, err := user.repositoryToken(schema.RepoEarthChem); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after revoke, got %v", err)
	}

	// Revoking again is a no-op.
	if err := user.revokeRepository(schema.RepoEarthChem); err != nil {
		t.Fatal(err)
	}
}

func TestAuthorizeUnknownRepository(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository("dataverse", "grant"); err == nil {
		t.Fatal("expected error for unknown repository")
	}
}

func TestExternalRepositoryHasNoAuthorization(t *testing.T) {
	env := setupTestEnv(t)
	user := env.newUser(t, "0000-0001-2345-6789")

	if _, err := user.authorizeRepository(schema.RepoExternal, "grant"); err == nil {
		t.Fatal("expected error authorizing external repository")
	}
}

func TestRepositoryTokenRequiresLogin(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	if _, err := c.repositoryToken(schema.RepoHydroShare); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}
