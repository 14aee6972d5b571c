package integration_tests

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/internal/testutil"
)

// mockOrderModule records the order in which stages execute.
type mockOrderModule struct {
	mu    sync.Mutex
	order []string
}

func (m *mockOrderModule) Register(r *registry.Registry) {
	type input struct {
		Name string `vxp:"name"`
	}
	r.RegisterRunner("OnRunOrdered", &registry.RegisteredRunner{
		NewInput:  func() any { return new(input) },
		InputType: reflect.TypeOf(input{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(_ context.Context, _ any, inputRaw any) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.order = append(m.order, inputRaw.(*input).Name)
			return nil, nil
		},
	})
}

func (m *mockOrderModule) indexOf(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestDagConcurrency_FanInWaitsForAllDependencies(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	manifestHCL := `
		runner "ordered" {
			lifecycle {
				on_run = "OnRunOrdered"
			}
			input "name" {
				type = string
			}
		}
	`
	pipelineHCL := `
		stage "ordered" "A" {
			arguments {
				name = "A"
			}
		}
		stage "ordered" "B" {
			arguments {
				name = "B"
			}
		}
		stage "ordered" "C" {
			arguments {
				name = "C"
			}
			depends_on = ["ordered.A", "ordered.B"]
		}
	`
	files := map[string]string{
		"modules/ordered/manifest.hcl": manifestHCL,
		"pipeline/main.hcl":            pipelineHCL,
	}

	mockModule := &mockOrderModule{}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, mockModule)

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Len(t, mockModule.order, 3)

	cIdx := mockModule.indexOf("C")
	require.Greater(t, cIdx, mockModule.indexOf("A"), "C must run after A")
	require.Greater(t, cIdx, mockModule.indexOf("B"), "C must run after B")
}
