package test

import (
	"context"
	"testing"
	"time"
)

// Context returns a context cancelled after d or when the test ends.
func Context(t *testing.T, d time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)

	return ctx
}
