package httpclient

import (
	"net/http"
	"reflect"

	"github.com/vk/voxpipe/internal/registry"
)

// Module implements the registry.Module interface. It registers the stateful
// http_client asset and the stateless http_request runner.
type Module struct{}

// Register registers all of the module's components with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateHTTPClient", &registry.RegisteredAsset{
		NewInput: func() any { return new(AssetInput) },
		CreateFn: CreateHTTPClient,
	})
	r.RegisterAssetHandler("DestroyHTTPClient", &registry.RegisteredAsset{
		DestroyFn: DestroyHTTPClient,
	})
	r.RegisterAssetInterface("http_client", reflect.TypeOf((*http.Client)(nil)))

	r.RegisterRunner("OnRunHTTPRequest", &registry.RegisteredRunner{
		NewInput:  func() any { return new(RequestInput) },
		InputType: reflect.TypeOf(RequestInput{}),
		NewDeps:   func() any { return new(RequestDeps) },
		Fn:        OnRunHTTPRequest,
	})
}
