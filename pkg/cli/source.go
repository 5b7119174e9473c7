package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/app"
	"edfi-dms/internal/config"
	"edfi-dms/internal/domain"
	"edfi-dms/internal/service/loadorder"
)

// build loads the schema named by the persistent flags and runs the engine.
func (o *rootOptions) build(cmd *cobra.Command) (*loadorder.Snapshot, *apischema.Schema, error) {
	paths := append([]string(nil), o.schemaPaths...)
	var ef config.EngineFile
	if o.configFile != "" {
		f, err := config.LoadEngineFile(o.configFile)
		if err != nil {
			return nil, nil, err
		}
		ef = *f
		paths = append(paths, f.SchemaPaths...)
	}
	if len(paths) == 0 {
		return nil, nil, errors.New("no schema given: use --schema, SCHEMA_PATH or schemaPaths in --config")
	}

	schema, err := apischema.LoadWithOptions(apischema.LoadOptions{Strict: o.strict}, paths...)
	if err != nil {
		return nil, nil, err
	}

	engine, err := app.NewEngine(&config.Config{Engine: ef}, o.logger(cmd))
	if err != nil {
		return nil, nil, err
	}
	snap, err := engine.Build(schema)
	if err != nil {
		return nil, schema, err
	}
	return snap, schema, nil
}

// fetchRemote reads the load order published by a running server.
func fetchRemote(ctx context.Context, host string) ([]domain.LoadOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url := strings.TrimRight(host, "/") + "/metadata/dependencies"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", url, resp.StatusCode, body.Message)
	}
	var orders []domain.LoadOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode load order: %w", err)
	}
	return orders, nil
}
