package integration_tests

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/internal/testutil"
)

// mockCancelRaceModule registers three runners: one that fails instantly,
// one that keeps running past the cancellation, and a spy that records
// whether any downstream stage was ever executed.
type mockCancelRaceModule struct {
	spyExecutions *atomic.Int32
	injectedError error
	sleep         time.Duration
}

func (m *mockCancelRaceModule) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunFailer", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn:        func(context.Context, any, any) (any, error) { return nil, m.injectedError },
	})

	r.RegisterRunner("OnRunSleeper", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(context.Context, any, any) (any, error) {
			// Deliberately ignores cancellation so it finishes Done after
			// the failing stage has already canceled the run.
			time.Sleep(m.sleep)
			return nil, nil
		},
	})

	r.RegisterRunner("OnRunSpy", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(context.Context, any, any) (any, error) {
			m.spyExecutions.Add(1)
			return nil, nil
		},
	})
}

// A stage whose dependency completes after the run was canceled is dequeued
// and skipped by a worker; its own dependents must be skipped transitively,
// or Run never returns.
func TestErrorHandling_CancelMidRun_SkipsEntireDownstreamChain(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	failerManifestHCL := `
		runner "failer" {
			lifecycle {
				on_run = "OnRunFailer"
			}
		}
	`
	sleeperManifestHCL := `
		runner "sleeper" {
			lifecycle {
				on_run = "OnRunSleeper"
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
		stage "failer" "boom" {
			arguments {}
		}

		stage "sleeper" "slow" {
			arguments {}
		}

		stage "spy" "y" {
			arguments {}
			depends_on = ["sleeper.slow"]
		}

		stage "spy" "z" {
			arguments {}
			depends_on = ["spy.y"]
		}
	`
	files := map[string]string{
		"modules/failer/manifest.hcl":  failerManifestHCL,
		"modules/sleeper/manifest.hcl": sleeperManifestHCL,
		"modules/spy/manifest.hcl":     spyManifestHCL,
		"pipeline/main.hcl":            pipelineHCL,
	}

	expectedErr := errors.New("training script crashed")
	var spyExecutions atomic.Int32
	mockModule := &mockCancelRaceModule{
		spyExecutions: &spyExecutions,
		injectedError: expectedErr,
		sleep:         300 * time.Millisecond,
	}

	// --- Act ---
	resultChan := make(chan *testutil.HarnessResult, 1)
	go func() {
		resultChan <- testutil.RunIntegrationTest(t, files, mockModule)
	}()

	var result *testutil.HarnessResult
	select {
	case result = <-resultChan:
	case <-time.After(10 * time.Second):
		t.Fatal("app.Run() did not return: dependents of a skipped node were never marked done")
	}

	// --- Assert ---
	require.Error(t, result.Err, "app.Run() should have returned an error")
	require.ErrorIs(t, result.Err, expectedErr, "the error chain should preserve the root cause")
	require.Zero(t, spyExecutions.Load(), "no downstream stage should execute after the run was canceled")
}
