// Package syntheticdata provides a runner that generates reproducible
// synthetic volumetric images and matching segmentation labels, so pipelines
// can be exercised end to end without access to clinical data.
package syntheticdata

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/nifti"
	"github.com/vk/voxpipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the synthetic_data runner.
type Input struct {
	OutputDir     string  `vxp:"output_dir"`
	Count         int     `vxp:"count"`
	Size          int     `vxp:"size"`
	Seed          int64   `vxp:"seed"`
	Prefix        string  `vxp:"prefix"`
	NumEllipsoids int     `vxp:"num_ellipsoids"`
	NoiseSigma    float64 `vxp:"noise_sigma"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	Images []string `cty:"images"`
	Labels []string `cty:"labels"`
	Count  int      `cty:"count"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunSyntheticData is the handler for the 'synthetic_data' runner's on_run
// lifecycle event. Each volume derives its RNG from the base seed plus its
// index, so individual volumes are stable under count changes.
func OnRunSyntheticData(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("outputDir", input.OutputDir)

	if input.Count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", input.Count)
	}
	if input.Size < 8 {
		return nil, fmt.Errorf("size must be at least 8 voxels, got %d", input.Size)
	}

	imagesDir := filepath.Join(input.OutputDir, "images")
	labelsDir := filepath.Join(input.OutputDir, "labels")
	for _, dir := range []string{imagesDir, labelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
		}
	}

	opts := nifti.DefaultSynthOptions()
	opts.Size = input.Size
	if input.NumEllipsoids > 0 {
		opts.NumEllipsoids = input.NumEllipsoids
	}
	if input.NoiseSigma > 0 {
		opts.NoiseSigma = float32(input.NoiseSigma)
	}

	out := &Output{Count: input.Count}
	for i := 0; i < input.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rng := rand.New(rand.NewSource(input.Seed + int64(i)))
		image, label := nifti.Synthesize(rng, opts)

		name := fmt.Sprintf("%s_%03d.nii.gz", input.Prefix, i)
		imagePath := filepath.Join(imagesDir, name)
		labelPath := filepath.Join(labelsDir, name)

		if err := nifti.WriteFile(imagePath, image, fmt.Sprintf("synthetic volume %d", i)); err != nil {
			return nil, fmt.Errorf("failed to write image %d: %w", i, err)
		}
		if err := nifti.WriteFile(labelPath, label, fmt.Sprintf("synthetic label %d", i)); err != nil {
			return nil, fmt.Errorf("failed to write label %d: %w", i, err)
		}

		out.Images = append(out.Images, imagePath)
		out.Labels = append(out.Labels, labelPath)
		logger.Debug("Generated volume pair.", "index", i, "image", imagePath)
	}

	logger.Info("Generated synthetic dataset", "count", input.Count, "size", input.Size, "seed", input.Seed)
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunSyntheticData", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunSyntheticData,
	})
}
