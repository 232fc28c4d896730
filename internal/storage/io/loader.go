package io

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slok/jobwatch/internal/model"
)

// BackgroundRepository loads the user background from YAML or JSON files.
type BackgroundRepository struct {
	fs fs.FS
}

// NewBackgroundRepository creates a new background repository.
func NewBackgroundRepository(filesystem fs.FS) *BackgroundRepository {
	return &BackgroundRepository{fs: filesystem}
}

// GetBackground loads a user background from a file and returns it validated.
// Files with the `.json` extension are decoded as JSON, anything else as YAML.
func (r *BackgroundRepository) GetBackground(ctx context.Context, path string) (model.UserBackground, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.UserBackground{}, fmt.Errorf("reading background file: %w", err)
	}

	if ctx.Err() != nil {
		return model.UserBackground{}, ctx.Err()
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}

	return DecodeBackground(bytes.NewReader(data), format)
}

// Format is the encoding of a background document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DecodeBackground decodes and validates a background from a reader. Unknown fields are rejected.
func DecodeBackground(r io.Reader, format Format) (model.UserBackground, error) {
	var bg model.UserBackground

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&bg); err != nil {
			return model.UserBackground{}, fmt.Errorf("parsing JSON: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&bg); err != nil {
			if err == io.EOF {
				return model.UserBackground{}, fmt.Errorf("background document is empty: %w", model.ErrNotValid)
			}
			return model.UserBackground{}, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return model.UserBackground{}, fmt.Errorf("unknown format %q: %w", format, model.ErrNotValid)
	}

	if err := bg.Validate(); err != nil {
		return model.UserBackground{}, err
	}

	return bg, nil
}
