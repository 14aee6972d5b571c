package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/voxpipe/internal/config"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/fsutil"
	"github.com/vk/voxpipe/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Runners   []*schema.RunnerDefinition `hcl:"runner,block"`
	Assets    []*schema.AssetDefinition  `hcl:"asset,block"`
	Stages    []*schema.Stage            `hcl:"stage,block"`
	Resources []*schema.Resource         `hcl:"resource,block"`
	Remain    hcl.Body                   `hcl:",remain"`
}

// Load orchestrates the entire HCL configuration loading process. It is
// agnostic to the origin of the paths and parses any valid block from any file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{
		Runners:  make(map[string]*config.RunnerDefinition),
		Assets:   make(map[string]*config.AssetDefinition),
		Pipeline: &config.Pipeline{},
	}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		// Translate and merge all discovered blocks into the model.
		for _, runner := range root.Runners {
			def, err := l.translateRunnerDefinition(ctx, runner)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid runner manifest in %s: %w", file, err)
			}
			model.Runners[def.Type] = def
		}
		for _, asset := range root.Assets {
			def, err := l.translateAssetDefinition(ctx, asset)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid asset manifest in %s: %w", file, err)
			}
			model.Assets[def.Type] = def
		}
		for _, stage := range root.Stages {
			model.Pipeline.Stages = append(model.Pipeline.Stages, l.translateStage(stage))
		}
		for _, resource := range root.Resources {
			model.Pipeline.Resources = append(model.Pipeline.Resources, l.translateResource(resource))
		}
	}

	logger.Debug("HCL loading complete.",
		"runners", len(model.Runners),
		"assets", len(model.Assets),
		"stages", len(model.Pipeline.Stages),
		"resources", len(model.Pipeline.Resources),
	)
	return model, NewConverter(), nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. Paths that do not exist are skipped silently.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
