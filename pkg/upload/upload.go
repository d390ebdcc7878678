// Package upload publishes generated report files to remote storage.
package upload

import "context"

// Publisher copies report files to remote storage.
type Publisher interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Publish uploads each file under the configured prefix, keyed by its
	// base name, and returns the written keys.
	Publish(ctx context.Context, paths []string) ([]string, error)
}
