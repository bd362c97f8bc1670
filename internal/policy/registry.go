package policy

import (
	"log/slog"

	"github.com/me/gosched/pkg/model"
)

// Registry holds one policy per algorithm, created on first use and kept for
// the registry's lifetime. Callers serialize access.
type Registry struct {
	policies map[model.Algorithm]Policy
	opts     Options
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry whose policies are built with opts.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	return &Registry{
		policies: make(map[model.Algorithm]Policy),
		opts:     opts,
		logger:   logger.With("component", "policy-registry"),
	}
}

// GetOrCreate returns the policy registered for alg, creating it if needed.
func (r *Registry) GetOrCreate(alg model.Algorithm) (Policy, error) {
	if p, ok := r.policies[alg]; ok {
		return p, nil
	}
	p, err := New(alg, r.opts)
	if err != nil {
		return nil, err
	}
	r.policies[alg] = p
	r.logger.Info("policy created", "algorithm", alg)
	return p, nil
}

// Get returns the policy for alg if one has been created.
func (r *Registry) Get(alg model.Algorithm) (Policy, bool) {
	p, ok := r.policies[alg]
	return p, ok
}

// Each calls fn for every registered policy in admission scan order
// (fifo, round_robin, sjf, priority) until fn returns false.
func (r *Registry) Each(fn func(Policy) bool) {
	for _, alg := range model.Algorithms {
		p, ok := r.policies[alg]
		if !ok {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

// Pending returns queued counts per registered algorithm and their total.
func (r *Registry) Pending() (map[model.Algorithm]int, int) {
	counts := make(map[model.Algorithm]int, len(r.policies))
	total := 0
	for alg, p := range r.policies {
		n := p.Len()
		counts[alg] = n
		total += n
	}
	return counts, total
}
