// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

//go:embed default.toml
var defaultCatalog []byte

// document is the on-disk catalog layout shared by every format.
type document struct {
	Apps []domain.CatalogEntry `json:"apps" toml:"apps" yaml:"apps"`
}

// BuiltinSource loads the catalog shipped with the binary.
type BuiltinSource struct{}

// Load parses the embedded catalog.
func (BuiltinSource) Load(_ context.Context) ([]domain.CatalogEntry, error) {
	return Parse(defaultCatalog, ".toml")
}

// FileSource loads a catalog from a TOML, YAML or JSON file.
type FileSource struct {
	Path string
}

// Load reads and parses the catalog file.
func (s FileSource) Load(ctx context.Context) ([]domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	entries, err := Parse(data, filepath.Ext(s.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", s.Path, err)
	}

	return entries, nil
}

// SourceFor returns the file source for path, or the builtin catalog when path is empty.
func SourceFor(path string) domain.CatalogSource {
	if strings.TrimSpace(path) == "" {
		return BuiltinSource{}
	}

	return FileSource{Path: path}
}

// Parse decodes catalog data; ext selects the format (".toml", ".yaml", ".yml", ".json").
func Parse(data []byte, ext string) ([]domain.CatalogEntry, error) {
	var doc document

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(&doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return doc.Apps, nil
}

// Load builds a validated catalog from source.
func Load(ctx context.Context, source domain.CatalogSource) (*Catalog, error) {
	entries, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	return New(entries)
}
