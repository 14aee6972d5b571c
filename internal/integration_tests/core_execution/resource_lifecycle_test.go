package integration_tests

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/internal/testutil"
)

// mockResourceSpyModule registers an asset that counts its lifecycle calls
// and a runner that checks which instance was injected.
type mockResourceSpyModule struct {
	createCalls  atomic.Int32
	destroyCalls atomic.Int32
}

func (m *mockResourceSpyModule) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateSpyResource", &registry.RegisteredAsset{
		NewInput: func() any { return new(struct{}) },
		CreateFn: func(context.Context, any) (any, error) {
			m.createCalls.Add(1)
			return "shared_instance", nil
		},
	})
	r.RegisterAssetHandler("DestroySpyResource", &registry.RegisteredAsset{
		DestroyFn: func(any) error {
			m.destroyCalls.Add(1)
			return nil
		},
	})

	type deps struct {
		R any `vxp:"r"`
	}
	r.RegisterRunner("OnRunUser", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(deps) },
		Fn: func(_ context.Context, depsRaw any, _ any) (any, error) {
			if depsRaw.(*deps).R != "shared_instance" {
				return nil, fmt.Errorf("unexpected resource instance injected: %v", depsRaw.(*deps).R)
			}
			return nil, nil
		},
	})
}

func TestCoreExecution_ResourceSharedAndDestroyedOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	assetManifestHCL := `
		asset "spy_resource" {
			lifecycle {
				create  = "CreateSpyResource"
				destroy = "DestroySpyResource"
			}
		}
	`
	runnerManifestHCL := `
		runner "user" {
			lifecycle {
				on_run = "OnRunUser"
			}
			uses "r" {
				asset_type = "spy_resource"
			}
		}
	`
	pipelineHCL := `
		resource "spy_resource" "A" {}

		stage "user" "B" {
			uses {
				r = resource.spy_resource.A
			}
		}

		stage "user" "C" {
			uses {
				r = resource.spy_resource.A
			}
		}
	`
	files := map[string]string{
		"modules/spy_resource/manifest.hcl": assetManifestHCL,
		"modules/user/manifest.hcl":         runnerManifestHCL,
		"pipeline/main.hcl":                 pipelineHCL,
	}

	mockModule := &mockResourceSpyModule{}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, mockModule)

	// --- Assert ---
	require.NoError(t, result.Err, "app.Run() returned an unexpected error")
	require.Equal(t, int32(1), mockModule.createCalls.Load(), "resource should be created exactly once")
	require.Equal(t, int32(1), mockModule.destroyCalls.Load(), "resource should be destroyed exactly once")
}
