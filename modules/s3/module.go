// Package s3 provides a shared S3 client asset and a runner for moving
// datasets, checkpoints, and inference outputs between disk and object
// storage.
package s3

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// AssetInput defines the arguments for creating an s3_client resource.
type AssetInput struct {
	Endpoint  string `vxp:"endpoint"`
	AccessKey string `vxp:"access_key"`
	SecretKey string `vxp:"secret_key"`
	Region    string `vxp:"region"`
	UseSSL    bool   `vxp:"use_ssl"`
}

// CreateS3Client is the 'create' handler for the asset.
func CreateS3Client(ctx context.Context, input *AssetInput) (*minio.Client, error) {
	client, err := minio.New(input.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(input.AccessKey, input.SecretKey, ""),
		Secure: input.UseSSL,
		Region: input.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client for %q: %w", input.Endpoint, err)
	}
	ctxlog.FromContext(ctx).Debug("Created S3 client.", "endpoint", input.Endpoint)
	return client, nil
}

// DestroyS3Client is the 'destroy' handler. The client holds no connections
// that need explicit teardown.
func DestroyS3Client(client *minio.Client) error {
	return nil
}

// Input defines the arguments for the s3_transfer runner.
type Input struct {
	Action      string `vxp:"action"`
	Bucket      string `vxp:"bucket"`
	Key         string `vxp:"key"`
	Path        string `vxp:"path"`
	ContentType string `vxp:"content_type"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	Bucket string `cty:"bucket"`
	Key    string `cty:"key"`
	Size   int64  `cty:"size"`
}

// Deps defines the injected resources from the stage's 'uses' block.
type Deps struct {
	Client *minio.Client `vxp:"client"`
}

// OnRunS3Transfer is the handler for the 's3_transfer' runner's on_run
// lifecycle event.
func OnRunS3Transfer(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("bucket", input.Bucket, "key", input.Key)

	if deps.Client == nil {
		return nil, fmt.Errorf("s3 client dependency was not injected")
	}

	switch strings.ToLower(input.Action) {
	case "upload":
		contentType := input.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(input.Path))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		logger.Info("Uploading object", "source", input.Path, "contentType", contentType)
		info, err := deps.Client.FPutObject(ctx, input.Bucket, input.Key, input.Path, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload %q: %w", input.Path, err)
		}
		logger.Info("Upload complete", "size", info.Size)
		return &Output{Bucket: info.Bucket, Key: info.Key, Size: info.Size}, nil

	case "download":
		logger.Info("Downloading object", "destination", input.Path)
		if err := deps.Client.FGetObject(ctx, input.Bucket, input.Key, input.Path, minio.GetObjectOptions{}); err != nil {
			return nil, fmt.Errorf("failed to download %q: %w", input.Key, err)
		}
		stat, err := deps.Client.StatObject(ctx, input.Bucket, input.Key, minio.StatObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q after download: %w", input.Key, err)
		}
		logger.Info("Download complete", "size", stat.Size)
		return &Output{Bucket: input.Bucket, Key: input.Key, Size: stat.Size}, nil

	default:
		return nil, fmt.Errorf("unknown s3 action %q", input.Action)
	}
}

// Register registers the module's components with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateS3Client", &registry.RegisteredAsset{
		NewInput: func() any { return new(AssetInput) },
		CreateFn: CreateS3Client,
	})
	r.RegisterAssetHandler("DestroyS3Client", &registry.RegisteredAsset{
		DestroyFn: DestroyS3Client,
	})
	r.RegisterAssetInterface("s3_client", reflect.TypeOf((*minio.Client)(nil)))

	r.RegisterRunner("OnRunS3Transfer", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunS3Transfer,
	})
}
