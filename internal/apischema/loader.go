package apischema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures document decoding.
type LoadOptions struct {
	// Strict rejects fields the document model does not know about.
	Strict bool
}

// Load reads every path (files or directories) and returns the validated schema.
func Load(paths ...string) (*Schema, error) {
	return LoadWithOptions(LoadOptions{}, paths...)
}

// LoadWithOptions is Load with caller-provided decoding options.
func LoadWithOptions(opts LoadOptions, paths ...string) (*Schema, error) {
	docs, err := LoadDocuments(opts, paths...)
	if err != nil {
		return nil, err
	}
	return NewSchema(docs...)
}

// LoadDocuments decodes the documents found at paths without validating them
// as a set. A directory contributes its *.json, *.yaml and *.yml files in
// name order; subdirectories are not walked.
func LoadDocuments(opts LoadOptions, paths ...string) ([]Document, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no schema paths given")
	}
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", f, err)
		}
		doc, err := Parse(data, formatOf(f), opts)
		if err != nil {
			return nil, fmt.Errorf("decode schema %s: %w", f, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Format is the encoding of a schema document.
type Format int

// Supported formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse decodes one document.
func Parse(data []byte, format Format, opts LoadOptions) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(opts.Strict)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if opts.Strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(&doc); err != nil {
			return Document{}, err
		}
	}
	if doc.ProjectSchema.ProjectName == "" {
		return Document{}, fmt.Errorf("missing projectSchema.projectName")
	}
	return doc, nil
}

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("schema path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read schema directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !isSchemaFile(e.Name()) {
				continue
			}
			found = append(found, filepath.Join(p, e.Name()))
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("schema directory %s contains no schema files", p)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
