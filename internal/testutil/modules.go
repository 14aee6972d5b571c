package testutil

import (
	"context"
	"reflect"
	"time"

	"github.com/vk/voxpipe/internal/registry"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers a single runner or asset handler.
type SimpleModule struct {
	RunnerName string
	Runner     *registry.RegisteredRunner

	AssetName string
	Asset     *registry.RegisteredAsset
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.RunnerName != "" && m.Runner != nil {
		r.RegisterRunner(m.RunnerName, m.Runner)
	}
	if m.AssetName != "" && m.Asset != nil {
		r.RegisterAssetHandler(m.AssetName, m.Asset)
	}
}

// NoOpModule registers a single "NoOp" runner that takes no inputs, requires
// no dependencies, and does nothing. It's useful for tests that should fail
// before execution begins but still need HCL that passes registry validation.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterRunner("NoOp", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			return nil, nil
		},
	})
}

// ExecutionRecord holds the start and end times for a single stage's execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// NoOpManifest is the manifest HCL matching NoOpModule, keyed for use in a
// harness files map.
const NoOpManifest = `
runner "noop" {
  lifecycle {
    on_run = "NoOp"
  }
}
`
