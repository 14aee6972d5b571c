// Package socketio provides a runner that reports pipeline progress to a
// Socket.IO endpoint, e.g. a monitoring dashboard watching a training run.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the progress_event runner.
type Input struct {
	URL                string         `vxp:"url"`
	Namespace          string         `vxp:"namespace"`
	EmitEvent          string         `vxp:"emit_event"`
	EmitData           map[string]any `vxp:"emit_data"`
	OnEvent            string         `vxp:"on_event"`
	Timeout            string         `vxp:"timeout"`
	InsecureSkipVerify bool           `vxp:"insecure_skip_verify"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	Acked    bool   `cty:"acked"`
	Response string `cty:"response"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// opResult safely passes results through the done channel.
type opResult struct {
	value *Output
	err   error
}

// OnRunProgressEvent is the handler for the 'progress_event' runner's on_run
// lifecycle event. It connects, emits the event, and optionally waits for a
// response event before disconnecting.
func OnRunProgressEvent(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "progress_event", "url", input.URL, "emitEvent", input.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var isConnected atomic.Bool

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		logger.Warn("Failed to parse timeout, using default 10s", "inputTimeout", input.Timeout, "error", err)
		timeout = 10 * time.Second
	}

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected to progress endpoint", "namespace", input.Namespace, "sid", io.Id())
		jsonData, _ := json.Marshal(input.EmitData)
		logger.Info("Emitting progress event", "event", input.EmitEvent, "data", string(jsonData))
		io.Emit(input.EmitEvent, input.EmitData)
		if input.OnEvent == "" {
			// Fire and forget: done once the emit is queued.
			done <- opResult{value: &Output{Acked: false}}
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		done <- opResult{err: connectError(errs)}
	})

	if input.OnEvent != "" {
		io.On(types.EventName(input.OnEvent), func(data ...any) {
			out := &Output{Acked: true}
			if len(data) > 0 {
				raw, err := json.Marshal(data[0])
				if err != nil {
					done <- opResult{err: fmt.Errorf("failed to encode response event: %w", err)}
					return
				}
				out.Response = string(raw)
			}
			done <- opResult{value: out}
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return nil, fmt.Errorf("timed out after connecting while waiting for event '%s'", input.OnEvent)
		}
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// connectError turns a connect_error payload into an error. The library does
// not guarantee an error value, so non-error payloads are stringified.
func connectError(errs []any) error {
	if len(errs) == 0 {
		return fmt.Errorf("connection failed")
	}
	if err, ok := errs[0].(error); ok {
		return err
	}
	return fmt.Errorf("connection failed: %v", errs[0])
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunProgressEvent", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunProgressEvent,
	})
}
