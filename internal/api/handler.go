// Package api serves the load-order metadata and schema management routes.
package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"edfi-dms/internal/service/loadorder"
)

// SnapshotSource returns the currently published snapshot, or nil.
type SnapshotSource interface {
	Load() *loadorder.Snapshot
}

// ReloadResult reports the outcome of a schema reload.
type ReloadResult struct {
	Reloaded    bool
	Fingerprint string
}

// Reloader rebuilds and publishes the snapshot from the configured schema.
type Reloader interface {
	Reload(ctx context.Context) (ReloadResult, error)
}

// Media types served by GetDependencies.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeGraphML = "application/graphml+xml"
	MediaTypeDOT     = "text/vnd.graphviz"
)

// Handler implements the HTTP routes.
type Handler struct {
	snapshots SnapshotSource
	reloader  Reloader
	logger    *slog.Logger
}

// NewHandler creates a Handler. reloader may be nil, in which case the
// management route is not mounted.
func NewHandler(snapshots SnapshotSource, reloader Reloader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{snapshots: snapshots, reloader: reloader, logger: logger}
}

// Health reports liveness and whether a snapshot has been published.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.snapshots.Load()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"fingerprint": strings.Trim(snap.ETag(), `"`),
		"builtAt":     snap.BuiltAt,
		"resources":   snap.Graph.Order(),
	})
}

// Discovery lists the metadata routes relative to the request's base URL.
func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"dependencies": baseURL(r) + "/metadata/dependencies",
	})
}

// GetDependencies serves the load order as JSON, or the diagnostic diagram
// as GraphML or DOT when requested with ?format= or the Accept header.
func (h *Handler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Load()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "load order is not available yet")
		return
	}

	format, ok := negotiateFormat(r)
	if !ok {
		writeError(w, http.StatusNotAcceptable, "supported formats: json, graphml, dot")
		return
	}

	etag := representationETag(snap, format)
	w.Header().Set("ETag", etag)
	w.Header().Add("Vary", "Accept")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if format != "json" && snap.DiagramErr != nil {
		writeError(w, http.StatusInternalServerError, "dependency diagram is not available. Check server logs for details.")
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "graphml":
		contentType = MediaTypeGraphML
		err = loadorder.WriteGraphML(&buf, snap.Diagram)
	case "dot":
		contentType = MediaTypeDOT
		err = loadorder.WriteDOT(&buf, snap.Diagram)
	default:
		writeJSON(w, http.StatusOK, snap.LoadOrder)
		return
	}
	if err != nil {
		h.logger.Error("render dependencies", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "dependencies could not be rendered")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ReloadSchema rebuilds the snapshot. Failures keep the previous snapshot;
// details go to the log only.
func (h *Handler) ReloadSchema(w http.ResponseWriter, r *http.Request) {
	res, err := h.reloader.Reload(r.Context())
	if err != nil {
		h.logger.Error("schema reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "The API schema could not be reloaded. Check server logs for details.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Schema reloaded successfully",
		"reloaded":    res.Reloaded,
		"fingerprint": res.Fingerprint,
	})
}

// representationETag is the snapshot ETag for JSON and a format-suffixed
// tag for the diagram renderings, so each representation validates apart.
func representationETag(snap *loadorder.Snapshot, format string) string {
	if format == "json" {
		return snap.ETag()
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%016x-%s", snap.Fingerprint, format))
}

// negotiateFormat picks json, graphml or dot. ?format= wins over Accept.
func negotiateFormat(r *http.Request) (string, bool) {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		switch f {
		case "json", "graphml", "dot":
			return f, true
		}
		return "", false
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		return "json", true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case MediaTypeJSON, "*/*", "application/*":
			return "json", true
		case MediaTypeGraphML, "application/graphml", "application/xml", "text/xml":
			return "graphml", true
		case MediaTypeDOT, "text/plain":
			return "dot", true
		}
	}
	return "", false
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
