package nifti

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	img := NewImage(4, 3, 2, 1.5)
	for i := range img.Voxels {
		img.Voxels[i] = float32(i) * 0.5
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, "round trip"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Dim, got.Dim)
	assert.Equal(t, img.PixDim, got.PixDim)
	assert.Equal(t, img.Voxels, got.Voxels)
}

func TestWrite_RejectsMismatchedVoxelCount(t *testing.T) {
	img := NewImage(4, 4, 4, 1)
	img.Voxels = img.Voxels[:10]

	err := Write(bytes.NewBuffer(nil), img, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match dimensions")
}

func TestRead_RejectsBadMagic(t *testing.T) {
	img := NewImage(2, 2, 2, 1)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, ""))

	raw := buf.Bytes()
	copy(raw[344:], "xxxx") // magic lives in the last 4 header bytes

	_, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected magic")
}

func TestRead_RejectsCorruptDimensions(t *testing.T) {
	img := NewImage(2, 2, 2, 1)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, ""))

	// Dim[1] sits at byte 42 of the fixed header.
	raw := buf.Bytes()
	negDim := int16(-2)
	binary.LittleEndian.PutUint16(raw[42:44], uint16(negDim))

	_, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	binary.LittleEndian.PutUint16(raw[42:44], uint16(int16(8192)))
	_, err = Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestWriteFile_GzipRoundTrip(t *testing.T) {
	img := NewImage(8, 8, 8, 1)
	img.Set(3, 4, 5, 42)

	path := filepath.Join(t.TempDir(), "vol.nii.gz")
	require.NoError(t, WriteFile(path, img, "gzip"))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, float32(42), got.At(3, 4, 5))
}

func TestSynthesize_Deterministic(t *testing.T) {
	opts := SynthOptions{Size: 16, Spacing: 1, NumEllipsoids: 2, NoiseSigma: 0.05}

	imgA, labelA := Synthesize(rand.New(rand.NewSource(7)), opts)
	imgB, labelB := Synthesize(rand.New(rand.NewSource(7)), opts)

	assert.Equal(t, imgA.Voxels, imgB.Voxels)
	assert.Equal(t, labelA.Voxels, labelB.Voxels)
}

func TestSynthesize_LabelsMarkEllipsoids(t *testing.T) {
	opts := SynthOptions{Size: 24, Spacing: 1, NumEllipsoids: 3, NoiseSigma: 0}

	img, label := Synthesize(rand.New(rand.NewSource(1)), opts)

	foreground := 0
	for i, v := range label.Voxels {
		switch v {
		case 0:
			// Noise-free background stays exactly zero.
			assert.Equal(t, float32(0), img.Voxels[i])
		case 1:
			foreground++
			assert.Greater(t, img.Voxels[i], float32(0.5))
		default:
			t.Fatalf("unexpected label value %v", v)
		}
	}
	assert.Greater(t, foreground, 0, "expected at least one foreground voxel")
}
