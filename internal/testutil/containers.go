// Package testutil starts the shared containers used by integration tests.
//
// Each container is started at most once per test binary and reused by every
// test that asks for it. Tests are skipped when the container cannot be
// started, e.g. when no Docker daemon is available.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// startTimeout is generous for CI environments that pull images on demand.
const startTimeout = 3 * time.Minute

// shared holds the result of a single container start.
type shared struct {
	once     sync.Once
	endpoint string
	err      error
}

func (s *shared) get(t *testing.T, name string, start func(ctx context.Context) (string, error)) string {
	t.Helper()

	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		s.endpoint, s.err = start(ctx)
	})
	if s.err != nil {
		t.Skipf("%s container unavailable: %v", name, s.err)
	}
	return s.endpoint
}
