package jsonconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOnRunJSONConfig_PatchesTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "config_train.json")
	template := `{
		"data_base_dir": "/data",
		"autoencoder_train": {"batch_size": 8, "n_epochs": 100, "lr": 0.0001},
		"diffusion_train": {"batch_size": 16}
	}`
	require.NoError(t, os.WriteFile(source, []byte(template), 0o644))

	destination := filepath.Join(dir, "patched.json")
	input := &Input{
		Source:      source,
		Destination: destination,
		Values: map[string]any{
			"autoencoder_train.batch_size": int64(2),
			"autoencoder_train.n_epochs":   int64(5),
			"data_base_dir":                "work/dataset",
		},
		Pretty: true,
	}

	out, err := OnRunJSONConfig(context.Background(), &Deps{}, input)
	require.NoError(t, err)
	assert.Equal(t, destination, out.Path)
	assert.Equal(t, 3, out.Patched)

	raw, err := os.ReadFile(destination)
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, int64(2), doc.Get("autoencoder_train.batch_size").Int())
	assert.Equal(t, int64(5), doc.Get("autoencoder_train.n_epochs").Int())
	assert.Equal(t, "work/dataset", doc.Get("data_base_dir").String())
	// Untouched values survive the patch.
	assert.Equal(t, 0.0001, doc.Get("autoencoder_train.lr").Float())
	assert.Equal(t, int64(16), doc.Get("diffusion_train.batch_size").Int())
}

func TestOnRunJSONConfig_NoSourceStartsEmpty(t *testing.T) {
	t.Parallel()

	destination := filepath.Join(t.TempDir(), "nested", "env.json")
	input := &Input{
		Destination: destination,
		Values: map[string]any{
			"model_dir":   "work/models",
			"resume_ckpt": false,
		},
		Pretty: false,
	}

	out, err := OnRunJSONConfig(context.Background(), &Deps{}, input)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Patched)

	raw, err := os.ReadFile(destination)
	require.NoError(t, err)
	doc := gjson.ParseBytes(raw)
	assert.Equal(t, "work/models", doc.Get("model_dir").String())
	assert.False(t, doc.Get("resume_ckpt").Bool())
}

func TestOnRunJSONConfig_InvalidSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(source, []byte("{not json"), 0o644))

	input := &Input{
		Source:      source,
		Destination: filepath.Join(dir, "out.json"),
	}

	_, err := OnRunJSONConfig(context.Background(), &Deps{}, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestOnRunJSONConfig_MissingSource(t *testing.T) {
	t.Parallel()

	input := &Input{
		Source:      filepath.Join(t.TempDir(), "absent.json"),
		Destination: filepath.Join(t.TempDir(), "out.json"),
	}

	_, err := OnRunJSONConfig(context.Background(), &Deps{}, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read source config")
}
