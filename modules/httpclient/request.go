package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/vk/voxpipe/internal/ctxlog"
)

// RequestInput defines the arguments for the http_request runner.
type RequestInput struct {
	URL          string            `vxp:"url"`
	Method       string            `vxp:"method"`
	Body         string            `vxp:"body"`
	Headers      map[string]string `vxp:"headers"`
	SaveTo       string            `vxp:"save_to"`
	ExpectStatus int               `vxp:"expect_status"`
}

// RequestOutput defines the data structure returned by the runner.
type RequestOutput struct {
	StatusCode int    `cty:"status_code"`
	Body       string `cty:"body"`
	SavedTo    string `cty:"saved_to"`
}

// RequestDeps defines the injected resources from the stage's 'uses' block.
// The tag on Client must match the local name declared in the manifest.
type RequestDeps struct {
	Client *http.Client `vxp:"client"`
}

// OnRunHTTPRequest is the handler for the 'http_request' runner's on_run event.
func OnRunHTTPRequest(ctx context.Context, deps *RequestDeps, input *RequestInput) (*RequestOutput, error) {
	logger := ctxlog.FromContext(ctx).With("method", input.Method, "url", input.URL)

	if deps.Client == nil {
		return nil, fmt.Errorf("http client dependency was not injected")
	}

	method := input.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if input.Body != "" {
		body = strings.NewReader(input.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, input.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range input.Headers {
		req.Header.Set(k, v)
	}

	logger.Info("Making HTTP request")
	resp, err := deps.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	logger.Info("Received HTTP response", "status", resp.Status)

	if input.ExpectStatus != 0 && resp.StatusCode != input.ExpectStatus {
		return nil, fmt.Errorf("unexpected status %s, want %d", resp.Status, input.ExpectStatus)
	}

	out := &RequestOutput{StatusCode: resp.StatusCode}
	if input.SaveTo != "" {
		f, err := os.Create(input.SaveTo)
		if err != nil {
			return nil, fmt.Errorf("failed to create %q: %w", input.SaveTo, err)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to save response body: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %q: %w", input.SaveTo, err)
		}
		out.SavedTo = input.SaveTo
		return out, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	out.Body = string(raw)
	return out, nil
}
