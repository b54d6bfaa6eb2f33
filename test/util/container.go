// Package util provides test utilities for the Postgres and Redis backed
// stores.
package util

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// sharedService is a backing service started at most once per test binary.
// When ciEnv is set in the environment its value is used instead and no
// container is started.
type sharedService struct {
	name  string
	ciEnv string
	start func(ctx context.Context) (string, error)

	once sync.Once
	url  string
	err  error
}

func (s *sharedService) connString(t *testing.T) string {
	t.Helper()
	if url := os.Getenv(s.ciEnv); url != "" {
		return url
	}
	s.once.Do(func() {
		t.Logf("Starting shared %s testcontainer", s.name)
		s.url, s.err = s.start(context.Background())
	})
	require.NoError(t, s.err, "failed to start shared %s container", s.name)
	return s.url
}
