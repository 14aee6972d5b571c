// Package nifti implements a minimal reader and writer for the NIfTI-1
// volumetric image format, covering the single-file (.nii / .nii.gz)
// float32 layout used by the synthetic data module.
package nifti

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	headerSize = 348
	// voxOffset is the byte offset of voxel data in a single-file NIfTI-1
	// image: the 348-byte header followed by a 4-byte extension flag.
	voxOffset = 352

	// DTFloat32 is the NIfTI datatype code for 32-bit IEEE floats.
	DTFloat32 = 16

	// maxDimSize and maxVoxelCount cap the dimensions accepted by Read so a
	// corrupt header cannot trigger an absurd allocation.
	maxDimSize    = 4096
	maxVoxelCount = 1 << 30

	magicSingle = "n+1\x00"
)

// Image is an in-memory volumetric image. Voxels are stored in NIfTI's
// column-major order: x varies fastest, then y, then z.
type Image struct {
	// Dim holds the grid size along each spatial axis.
	Dim [3]int
	// PixDim holds the voxel spacing in millimetres along each axis.
	PixDim [3]float32
	// Voxels holds Dim[0]*Dim[1]*Dim[2] values.
	Voxels []float32
}

// NewImage allocates a zero-filled image with the given grid size and spacing.
func NewImage(nx, ny, nz int, spacing float32) *Image {
	return &Image{
		Dim:    [3]int{nx, ny, nz},
		PixDim: [3]float32{spacing, spacing, spacing},
		Voxels: make([]float32, nx*ny*nz),
	}
}

// At returns the voxel value at grid coordinate (x, y, z).
func (img *Image) At(x, y, z int) float32 {
	return img.Voxels[x+img.Dim[0]*(y+img.Dim[1]*z)]
}

// Set writes the voxel value at grid coordinate (x, y, z).
func (img *Image) Set(x, y, z int, v float32) {
	img.Voxels[x+img.Dim[0]*(y+img.Dim[1]*z)] = v
}

// header mirrors the fixed 348-byte NIfTI-1 header layout. Field order and
// sizes must not change; binary.Write serializes it verbatim.
type header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XyztUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	Toffset      float32
	Glmax        int32
	Glmin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

func newHeader(img *Image, descrip string) *header {
	h := &header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  DTFloat32,
		Bitpix:    32,
		VoxOffset: voxOffset,
		SclSlope:  1,
		XyztUnits: 2, // NIFTI_UNITS_MM
		SformCode: 1, // aligned to scanner anatomical coordinates
	}
	h.Dim[0] = 3
	for i := 0; i < 3; i++ {
		h.Dim[i+1] = int16(img.Dim[i])
		h.Pixdim[i+1] = img.PixDim[i]
	}
	for i := 4; i < 8; i++ {
		h.Dim[i] = 1
		h.Pixdim[i] = 1
	}
	// Identity orientation scaled by voxel spacing.
	h.SrowX[0] = img.PixDim[0]
	h.SrowY[1] = img.PixDim[1]
	h.SrowZ[2] = img.PixDim[2]
	copy(h.Descrip[:], descrip)
	copy(h.Magic[:], magicSingle)
	return h
}

// Write serializes the image in single-file NIfTI-1 format.
func Write(w io.Writer, img *Image, descrip string) error {
	if want := img.Dim[0] * img.Dim[1] * img.Dim[2]; len(img.Voxels) != want {
		return fmt.Errorf("voxel count %d does not match dimensions %v", len(img.Voxels), img.Dim)
	}
	if err := binary.Write(w, binary.LittleEndian, newHeader(img, descrip)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	// Extension flag: four zero bytes, no header extensions.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return fmt.Errorf("failed to write extension flag: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, img.Voxels); err != nil {
		return fmt.Errorf("failed to write voxel data: %w", err)
	}
	return nil
}

// WriteFile writes the image to path, gzip-compressing when the path ends in
// ".nii.gz". The file is written to a temporary sibling first and renamed
// into place so a crashed run never leaves a truncated image behind.
func WriteFile(path string, img *Image, descrip string) (err error) {
	tmp, err := os.CreateTemp(dirOf(path), ".nifti-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	var w io.Writer = tmp
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".nii.gz") {
		gz = gzip.NewWriter(tmp)
		w = gz
	}

	if err = Write(w, img, descrip); err != nil {
		tmp.Close()
		return err
	}
	if gz != nil {
		if err = gz.Close(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}

// Read parses a single-file NIfTI-1 image. Only little-endian float32 data
// is supported.
func Read(r io.Reader) (*Image, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if h.SizeofHdr != headerSize {
		return nil, fmt.Errorf("unexpected header size %d, want %d", h.SizeofHdr, headerSize)
	}
	if string(h.Magic[:]) != magicSingle {
		return nil, fmt.Errorf("unexpected magic %q, want single-file NIfTI-1", h.Magic)
	}
	if h.Datatype != DTFloat32 {
		return nil, fmt.Errorf("unsupported datatype %d, only float32 (%d) is supported", h.Datatype, DTFloat32)
	}
	if h.Dim[0] < 3 {
		return nil, fmt.Errorf("expected at least 3 dimensions, got %d", h.Dim[0])
	}
	voxelCount := 1
	for i := 1; i <= 3; i++ {
		d := int(h.Dim[i])
		if d < 1 || d > maxDimSize {
			return nil, fmt.Errorf("dimension %d is out of range: %d", i, d)
		}
		voxelCount *= d
	}
	if voxelCount > maxVoxelCount {
		return nil, fmt.Errorf("volume of %d voxels exceeds the supported maximum", voxelCount)
	}

	img := &Image{
		Dim:    [3]int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])},
		PixDim: [3]float32{h.Pixdim[1], h.Pixdim[2], h.Pixdim[3]},
	}

	// Skip everything between the fixed header and the voxel data.
	if skip := int64(h.VoxOffset) - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("failed to seek to voxel data: %w", err)
		}
	}

	img.Voxels = make([]float32, voxelCount)
	if err := binary.Read(r, binary.LittleEndian, &img.Voxels); err != nil {
		return nil, fmt.Errorf("failed to read voxel data: %w", err)
	}
	return img, nil
}

// ReadFile reads a NIfTI-1 image from path, transparently decompressing
// ".nii.gz" files.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".nii.gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Read(r)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
