// Package jsonconfig provides a runner that patches JSON configuration files,
// applying dotted-path overrides on top of an optional source template.
package jsonconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the json_config runner.
type Input struct {
	Source      string         `vxp:"source"`
	Destination string         `vxp:"destination"`
	Values      map[string]any `vxp:"values"`
	Pretty      bool           `vxp:"pretty"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	Path    string `cty:"path"`
	Patched int    `cty:"patched"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunJSONConfig is the handler for the 'json_config' runner's on_run
// lifecycle event. It loads the source document (or starts from an empty
// object), applies every entry in 'values' as a gjson dotted path, and writes
// the result atomically to the destination.
func OnRunJSONConfig(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("destination", input.Destination)

	doc := []byte("{}")
	if input.Source != "" {
		raw, err := os.ReadFile(input.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read source config %q: %w", input.Source, err)
		}
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("source config %q is not valid JSON", input.Source)
		}
		doc = raw
	}

	// Apply patches in sorted key order so runs are reproducible even though
	// the values arrive as a map.
	paths := make([]string, 0, len(input.Values))
	for p := range input.Values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var err error
	for _, p := range paths {
		doc, err = sjson.SetBytes(doc, p, input.Values[p])
		if err != nil {
			return nil, fmt.Errorf("failed to set %q: %w", p, err)
		}
		logger.Debug("Applied config patch.", "path", p)
	}

	if input.Pretty {
		doc = []byte(gjson.GetBytes(doc, "@pretty").Raw)
	}

	if err := writeAtomic(input.Destination, doc); err != nil {
		return nil, err
	}
	logger.Info("Wrote patched config", "patched", len(paths), "bytes", len(doc))

	return &Output{Path: input.Destination, Patched: len(paths)}, nil
}

// writeAtomic writes data to a temporary sibling and renames it into place so
// a concurrent reader never observes a half-written config.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move config into place: %w", err)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunJSONConfig", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunJSONConfig,
	})
}
