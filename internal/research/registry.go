package research

import (
	"context"
	"fmt"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

// Names of the academic-category units.
const (
	UnitArxiv      = "arxiv"
	UnitDOI        = "doi"
	UnitAcademic   = "academic"
	UnitStatistics = "statistics"
)

// Findings is the normalised output of an academic-category unit.
type Findings struct {
	Papers     []domain.Paper
	Materials  []domain.Material
	Review     string
	Citations  []string
	Summaries  []domain.PaperSummary
	ArticleIDs []string
}

// Unit captures a single source strategy (arXiv, DOI, statistics, etc.).
// Research never panics past its boundary and always returns a usable value.
type Unit interface {
	Name() string
	Research(ctx context.Context, sc *session.Context, topic string) domain.Result[Findings]
}

// Registry keeps a mapping from unit names to their implementations.
type Registry struct {
	units map[string]Unit
	order []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: map[string]Unit{}}
}

// Register adds or replaces a unit implementation.
func (r *Registry) Register(unit Unit) {
	if r.units == nil {
		r.units = map[string]Unit{}
	}
	if _, ok := r.units[unit.Name()]; !ok {
		r.order = append(r.order, unit.Name())
	}
	r.units[unit.Name()] = unit
}

// Resolve returns a unit by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Unit, error) {
	if unit, ok := r.units[name]; ok {
		return unit, nil
	}
	return nil, fmt.Errorf("research unit %s is not registered", name)
}

// Units returns every unit in registration order.
func (r *Registry) Units() []Unit {
	out := make([]Unit, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.units[name])
	}
	return out
}

// Guard runs unit and converts a panic into a degraded result.
func Guard(ctx context.Context, sc *session.Context, unit Unit, topic string) (res domain.Result[Findings]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unit %s panicked: %v", unit.Name(), r)
			sc.RecordError(ctx, "Error in "+unit.Name()+" research", err)
			res = domain.ProviderFailed(Findings{}, err)
		}
	}()
	return unit.Research(ctx, sc, topic)
}
