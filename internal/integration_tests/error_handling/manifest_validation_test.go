package integration_tests

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/internal/testutil"
)

// mockMismatchedModule registers a handler whose input struct does not match
// its manifest: the manifest declares a "size" input the Go struct lacks.
type mockMismatchedModule struct{}

func (m *mockMismatchedModule) Register(r *registry.Registry) {
	type input struct {
		Seed int `vxp:"seed"`
	}
	r.RegisterRunner("OnRunMismatched", &registry.RegisteredRunner{
		NewInput:  func() any { return new(input) },
		InputType: reflect.TypeOf(input{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn:        func(context.Context, any, any) (any, error) { return nil, nil },
	})
}

func TestErrorHandling_ManifestParityMismatch_FailsStartup(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	manifestHCL := `
		runner "mismatched" {
			lifecycle {
				on_run = "OnRunMismatched"
			}
			input "seed" {
				type = number
			}
			input "size" {
				type = number
			}
		}
	`
	pipelineHCL := `
		stage "mismatched" "A" {
			arguments {
				seed = 42
				size = 64
			}
		}
	`
	files := map[string]string{
		"modules/mismatched/manifest.hcl": manifestHCL,
		"pipeline/main.hcl":               pipelineHCL,
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, &mockMismatchedModule{})

	// --- Assert ---
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "application startup panicked")
	require.Contains(t, result.Err.Error(), "manifest declares input 'size' which is not found in Go struct")
	require.Nil(t, result.App, "the app should not have been constructed")
}

func TestErrorHandling_MissingRequiredArgument_FailsRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	manifestHCL := `
		runner "needy" {
			lifecycle {
				on_run = "OnRunNeedy"
			}
			input "path" {
				type = string
			}
		}
	`
	pipelineHCL := `
		stage "needy" "A" {
			arguments {}
		}
	`
	files := map[string]string{
		"modules/needy/manifest.hcl": manifestHCL,
		"pipeline/main.hcl":          pipelineHCL,
	}

	type input struct {
		Path string `vxp:"path"`
	}
	mockModule := &testutil.SimpleModule{
		RunnerName: "OnRunNeedy",
		Runner: &registry.RegisteredRunner{
			NewInput:  func() any { return new(input) },
			InputType: reflect.TypeOf(input{}),
			NewDeps:   func() any { return new(struct{}) },
			Fn:        func(context.Context, any, any) (any, error) { return nil, nil },
		},
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, mockModule)

	// --- Assert ---
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), `missing required argument "path"`)
}
