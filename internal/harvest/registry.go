package harvest

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// Registry manages comparison modules and aggregates their scores.
// Registration and retrieval are thread-safe; the module list is a snapshot,
// safe to iterate while modules are registered concurrently.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
	logger  zerolog.Logger
}

// NewRegistry creates an empty module registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		modules: make(map[string]Module),
		logger:  logger.With().Str("component", "harvest").Logger(),
	}
}

// Register adds a module to the registry. Re-registering a name replaces the
// previous module but keeps its position in the evaluation order.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name()]; !ok {
		r.order = append(r.order, m.Name())
	}
	r.modules[m.Name()] = m
}

// Get returns a module by name, or nil if not registered.
func (r *Registry) Get(name string) Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[name]
}

// Modules returns all registered modules in registration order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]Module, 0, len(r.order))
	for _, name := range r.order {
		modules = append(modules, r.modules[name])
	}
	return modules
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Compatibility runs every registered module on the signature pair and
// returns the average score over modules that had signal. The boolean is
// false when no module produced signal for the pair.
//
// A failing module is logged and skipped; its failure does not abort the
// comparison. With zero registered modules Compatibility returns
// domain.ErrNoHarvesters.
func (r *Registry) Compatibility(ctx context.Context, a, b *domain.VirtualAuthor) (float64, bool, error) {
	modules := r.Modules()
	if len(modules) == 0 {
		return 0, false, domain.ErrNoHarvesters
	}

	var sum float64
	var n int
	for _, m := range modules {
		score, ok, err := m.Compare(ctx, a, b)
		if err != nil {
			herr := &domain.HarvesterError{Module: m.Name(), Cause: err}
			r.logger.Warn().Err(herr).
				Str("module", m.Name()).
				Int64("va_a", a.ID).
				Int64("va_b", b.ID).
				Msg("comparison module failed, skipping")
			continue
		}
		if !ok {
			continue
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

// ExtractAll invokes the extraction entry point of every module that has one,
// pulling derived data from the signature into the cluster. Modules without
// an extraction capability are silently skipped; a failing extractor is
// logged and skipped.
func (r *Registry) ExtractAll(ctx context.Context, vaID, raID int64) {
	for _, m := range r.Modules() {
		ex, ok := m.(Extractor)
		if !ok {
			continue
		}
		if err := ex.Extract(ctx, vaID, raID); err != nil {
			herr := &domain.HarvesterError{Module: m.Name(), Cause: err}
			r.logger.Warn().Err(herr).
				Str("module", m.Name()).
				Int64("va_id", vaID).
				Int64("ra_id", raID).
				Msg("extraction failed, skipping")
		}
	}
}
