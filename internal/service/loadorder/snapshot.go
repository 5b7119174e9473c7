package loadorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/domain"
)

// Snapshot is the immutable result of running the pipeline for one schema
// version. Callers must not modify anything reachable from it.
type Snapshot struct {
	Fingerprint  uint64
	BuiltAt      time.Time
	Graph        *DependencyGraph
	RemovedEdges []Edge
	LoadOrder    []domain.LoadOrder
	Diagram      Diagram
	// DiagramErr is set when the diagnostic diagram could not be drawn. The
	// load order is unaffected and Diagram is empty.
	DiagramErr error
}

// ETag returns a strong HTTP entity tag for the snapshot.
func (s *Snapshot) ETag() string {
	return fmt.Sprintf("%q", fmt.Sprintf("%016x", s.Fingerprint))
}

// Fingerprint hashes the canonical JSON encoding of the schema documents.
func Fingerprint(schema *apischema.Schema) (uint64, error) {
	data, err := json.Marshal(schema.Documents())
	if err != nil {
		return 0, fmt.Errorf("fingerprint schema: %w", err)
	}
	return xxhash.Sum64(data), nil
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Authorizations overrides entries of the data-standard person
	// authorization table, keyed by person.
	Authorizations []PersonAuthorization
	// Ordering adds dependencies ahead of person authorization.
	Ordering []OrderingRule
	Logger   *slog.Logger
}

// Engine runs the full pipeline: graph build, transformers, cycle breaking,
// leveling, load-order transformers and diagram export.
type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{cfg: cfg, logger: logger, now: time.Now}
}

// Authorizations returns the person authorization table used for schema:
// the data-standard table with each configured person replacing the default
// entry for that person. Configured persons without a default are appended.
func (e *Engine) Authorizations(schema *apischema.Schema) []PersonAuthorization {
	return MergePersonAuthorizations(DefaultPersonAuthorizations(schema.Core().ProjectName), e.cfg.Authorizations)
}

// Calculator returns the calculator the engine uses for schema.
func (e *Engine) Calculator(schema *apischema.Schema) *Calculator {
	var transformers []GraphTransformer
	if len(e.cfg.Ordering) > 0 {
		transformers = append(transformers, NewOrderingTransformer(e.cfg.Ordering))
	}
	transformers = append(transformers, NewPersonAuthorizationTransformer(e.Authorizations(schema), e.logger))
	return NewCalculator(
		NewGraphFactory(transformers, e.logger),
		[]LoadOrderTransformer{PersonAuthorizationLoadOrderTransformer{}},
	)
}

// Build runs the pipeline for schema.
func (e *Engine) Build(schema *apischema.Schema) (*Snapshot, error) {
	fp, err := Fingerprint(schema)
	if err != nil {
		return nil, err
	}
	plan, err := e.Calculator(schema).Calculate(schema)
	if err != nil {
		return nil, err
	}
	diagram, diagramErr := NewExporter(e.Authorizations(schema), e.logger).Diagram(plan.Graph)
	if diagramErr != nil {
		e.logger.Warn("dependency diagram unavailable", "error", diagramErr)
	}
	return &Snapshot{
		Fingerprint:  fp,
		BuiltAt:      e.now().UTC(),
		Graph:        plan.Graph,
		RemovedEdges: plan.RemovedEdges,
		LoadOrder:    plan.LoadOrder,
		Diagram:      diagram,
		DiagramErr:   diagramErr,
	}, nil
}

// Holder publishes the current snapshot. Readers keep whichever snapshot
// they loaded; Publish never mutates a published snapshot.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the published snapshot, or nil before the first Publish.
func (h *Holder) Load() *Snapshot { return h.current.Load() }

// Publish replaces the published snapshot and returns the previous one.
func (h *Holder) Publish(s *Snapshot) *Snapshot { return h.current.Swap(s) }
