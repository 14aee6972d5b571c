// Package httpclient provides a stateful, shareable HTTP client asset and a
// stateless runner for making individual HTTP requests.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/vk/voxpipe/internal/ctxlog"
)

// AssetInput defines the arguments for creating an http_client resource.
type AssetInput struct {
	Timeout string `vxp:"timeout"`
}

// CreateHTTPClient is the 'create' handler for the asset. It returns a live
// *http.Client that is shared across every stage that uses the resource.
func CreateHTTPClient(ctx context.Context, input *AssetInput) (*http.Client, error) {
	timeout := 30 * time.Second
	if input.Timeout != "" {
		parsed, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return nil, err
		}
		timeout = parsed
	}

	ctxlog.FromContext(ctx).Debug("Creating shared HTTP client.", "timeout", timeout.String())
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}

// DestroyHTTPClient is the 'destroy' handler. For an http.Client we just
// close any idle connections.
func DestroyHTTPClient(client *http.Client) error {
	client.CloseIdleConnections()
	return nil
}
