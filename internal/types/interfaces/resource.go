package interfaces

import (
	"context"

	"github.com/clueweave/clueweave/internal/types"
)

// ResourceCleaner collects shutdown actions (pools, clients, connections)
// and runs them in reverse-registration order on Cleanup, matching the
// teacher's internal/container/cleanup.go.
type ResourceCleaner interface {
	Register(cleanup types.CleanupFunc)
	RegisterWithName(name string, cleanup types.CleanupFunc)
	Cleanup(ctx context.Context) []error
}
