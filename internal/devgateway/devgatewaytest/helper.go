// Package devgatewaytest starts dev gateway instances for tests.
package devgatewaytest

import (
	"net/http/httptest"
	"testing"

	"github.com/nhle/campus-notifier/internal/devgateway"
)

// NewTestRepository creates an in-memory Repository with all migrations
// applied. It automatically closes the repository when the test completes.
func NewTestRepository(t *testing.T) *devgateway.Repository {
	t.Helper()

	r, err := devgateway.OpenRepository(":memory:")
	if err != nil {
		t.Fatalf("creating test repository: %v", err)
	}

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("closing test repository: %v", err)
		}
	})

	return r
}

// NewTestServer serves a fresh dev gateway over httptest. The returned
// base URL includes the /api prefix.
func NewTestServer(t *testing.T) (baseURL string, repo *devgateway.Repository) {
	t.Helper()

	repo = NewTestRepository(t)
	srv := httptest.NewServer(devgateway.NewServer(repo, nil).Handler())
	t.Cleanup(srv.Close)

	return srv.URL + "/api", repo
}
