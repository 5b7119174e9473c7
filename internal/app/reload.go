package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"edfi-dms/internal/api"
	"edfi-dms/internal/apischema"
	"edfi-dms/internal/service/loadorder"
)

// Source names the schema files to load.
type Source struct {
	Paths   []string
	Options apischema.LoadOptions
}

// Reloader loads the schema, rebuilds the snapshot and publishes it when the
// schema fingerprint changed. Reloads are serialized.
type Reloader struct {
	mu     sync.Mutex
	source Source
	engine *loadorder.Engine
	holder *loadorder.Holder
	logger *slog.Logger
}

// NewReloader creates a Reloader publishing into holder.
func NewReloader(source Source, engine *loadorder.Engine, holder *loadorder.Holder, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reloader{
		source: source,
		engine: engine,
		holder: holder,
		logger: logger,
	}
}

var _ api.Reloader = (*Reloader)(nil)

// Reload implements api.Reloader. On error the published snapshot is left
// untouched.
func (r *Reloader) Reload(ctx context.Context) (api.ReloadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return api.ReloadResult{}, err
	}

	schema, err := apischema.LoadWithOptions(r.source.Options, r.source.Paths...)
	if err != nil {
		return api.ReloadResult{}, err
	}
	fp, err := loadorder.Fingerprint(schema)
	if err != nil {
		return api.ReloadResult{}, err
	}
	if cur := r.holder.Load(); cur != nil && cur.Fingerprint == fp {
		r.logger.Debug("schema unchanged", "fingerprint", strings.Trim(cur.ETag(), `"`))
		return api.ReloadResult{Reloaded: false, Fingerprint: strings.Trim(cur.ETag(), `"`)}, nil
	}

	snap, err := r.engine.Build(schema)
	if err != nil {
		return api.ReloadResult{}, err
	}
	r.holder.Publish(snap)

	groups := 0
	if n := len(snap.LoadOrder); n > 0 {
		groups = snap.LoadOrder[n-1].Group
	}
	fingerprint := strings.Trim(snap.ETag(), `"`)
	r.logger.Info("load order published",
		"fingerprint", fingerprint,
		"resources", len(snap.LoadOrder),
		"groups", groups,
		"removed_edges", len(snap.RemovedEdges),
	)
	return api.ReloadResult{Reloaded: true, Fingerprint: fingerprint}, nil
}
