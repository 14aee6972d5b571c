package syntheticdata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/nifti"
)

func TestOnRunSyntheticData_GeneratesPairs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := &Input{
		OutputDir: dir,
		Count:     3,
		Size:      16,
		Seed:      42,
		Prefix:    "sim",
	}

	out, err := OnRunSyntheticData(context.Background(), &Deps{}, input)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Count)
	require.Len(t, out.Images, 3)
	require.Len(t, out.Labels, 3)

	assert.Equal(t, filepath.Join(dir, "images", "sim_000.nii.gz"), out.Images[0])
	assert.Equal(t, filepath.Join(dir, "labels", "sim_002.nii.gz"), out.Labels[2])

	for i := range out.Images {
		img, err := nifti.ReadFile(out.Images[i])
		require.NoError(t, err)
		assert.Equal(t, [3]int{16, 16, 16}, img.Dim)

		label, err := nifti.ReadFile(out.Labels[i])
		require.NoError(t, err)
		assert.Equal(t, img.Dim, label.Dim)
	}
}

func TestOnRunSyntheticData_Deterministic(t *testing.T) {
	t.Parallel()

	run := func(dir string) []float32 {
		input := &Input{OutputDir: dir, Count: 1, Size: 16, Seed: 7, Prefix: "sim"}
		out, err := OnRunSyntheticData(context.Background(), &Deps{}, input)
		require.NoError(t, err)
		img, err := nifti.ReadFile(out.Images[0])
		require.NoError(t, err)
		return img.Voxels
	}

	assert.Equal(t, run(t.TempDir()), run(t.TempDir()))
}

func TestOnRunSyntheticData_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	_, err := OnRunSyntheticData(context.Background(), &Deps{}, &Input{OutputDir: t.TempDir(), Count: 0, Size: 16})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count must be at least 1")

	_, err = OnRunSyntheticData(context.Background(), &Deps{}, &Input{OutputDir: t.TempDir(), Count: 1, Size: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size must be at least 8")
}
