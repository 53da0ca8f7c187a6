// Package harvest provides the comparison-module registry: pluggable scoring
// modules contributing compatibility signal between two author signatures
// beyond raw name similarity (co-authorship, affiliations), and optional
// extraction of derived data into a cluster's aggregate index.
//
// Modules are registered explicitly at startup instead of being discovered at
// runtime. A registry with zero modules is a fatal configuration error.
package harvest

import (
	"context"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// Module scores the compatibility of two author signatures.
type Module interface {
	// Name identifies the module in logs, metrics and errors.
	Name() string

	// Compare returns a compatibility score in [0, 1] for the two
	// signatures. The boolean is false when the module has no signal for
	// this pair (for example neither signature carries the attributes the
	// module inspects), in which case the score must be ignored.
	Compare(ctx context.Context, a, b *domain.VirtualAuthor) (float64, bool, error)
}

// Extractor is implemented by modules that pull derived data out of a newly
// attached signature into its cluster. Modules without this capability are
// silently skipped during extraction.
type Extractor interface {
	// Extract folds module-specific derived data from the signature into
	// the cluster's aggregate index.
	Extract(ctx context.Context, vaID, raID int64) error
}
