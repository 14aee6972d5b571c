package integration_tests

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/internal/testutil"
)

// mockFailerModule registers a runner that always fails and a spy runner
// that records whether it was executed.
type mockFailerModule struct {
	wasSpyExecuted *atomic.Bool
	injectedError  error
}

func (m *mockFailerModule) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunFailer", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn:        func(context.Context, any, any) (any, error) { return nil, m.injectedError },
	})

	r.RegisterRunner("OnRunSpy", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(context.Context, any, any) (any, error) {
			m.wasSpyExecuted.Store(true) // If this runs, the test has failed.
			return nil, nil
		},
	})
}

func TestErrorHandling_FailingStage_SkipsDependents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	failerManifestHCL := `
		runner "failer" {
			lifecycle {
				on_run = "OnRunFailer"
			}
		}
	`
	spyManifestHCL := `
		runner "spy" {
			lifecycle {
				on_run = "OnRunSpy"
			}
		}
	`
	pipelineHCL := `
		stage "failer" "A" {
			arguments {}
		}

		stage "spy" "B" {
			arguments {}
			depends_on = ["failer.A"]
		}
	`
	files := map[string]string{
		"modules/failer/manifest.hcl": failerManifestHCL,
		"modules/spy/manifest.hcl":    spyManifestHCL,
		"pipeline/main.hcl":           pipelineHCL,
	}

	expectedErr := errors.New("training script crashed")
	var wasSpyExecuted atomic.Bool
	mockModule := &mockFailerModule{
		wasSpyExecuted: &wasSpyExecuted,
		injectedError:  expectedErr,
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, mockModule)

	// --- Assert ---
	require.Error(t, result.Err, "app.Run() should have returned an error")
	require.ErrorIs(t, result.Err, expectedErr, "the error chain should preserve the root cause")
	require.False(t, wasSpyExecuted.Load(), "fail-fast did not work: a dependent stage was executed")
}
