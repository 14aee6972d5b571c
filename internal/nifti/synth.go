package nifti

import (
	"math/rand"
)

// SynthOptions controls synthetic volume generation. The same seed always
// produces the same volumes, so downstream metrics are reproducible.
type SynthOptions struct {
	// Size is the edge length of the cubic volume.
	Size int
	// Spacing is the isotropic voxel spacing in millimetres.
	Spacing float32
	// NumEllipsoids is how many bright ellipsoids to embed per volume.
	NumEllipsoids int
	// NoiseSigma is the standard deviation of additive Gaussian noise.
	NoiseSigma float32
}

// DefaultSynthOptions mirrors the shapes commonly used for smoke-testing
// segmentation models: a 64-voxel cube with a handful of lesions.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Size:          64,
		Spacing:       1.0,
		NumEllipsoids: 4,
		NoiseSigma:    0.05,
	}
}

type ellipsoid struct {
	cx, cy, cz float64
	rx, ry, rz float64
	intensity  float64
}

// Synthesize generates one image/label pair from the given RNG. The image is
// a noisy background with bright ellipsoids; the label marks ellipsoid voxels
// with 1 and background with 0.
func Synthesize(rng *rand.Rand, opts SynthOptions) (image, label *Image) {
	n := opts.Size
	image = NewImage(n, n, n, opts.Spacing)
	label = NewImage(n, n, n, opts.Spacing)

	shapes := make([]ellipsoid, opts.NumEllipsoids)
	for i := range shapes {
		shapes[i] = ellipsoid{
			// Keep centers away from the borders so shapes stay inside.
			cx:        float64(n) * (0.25 + 0.5*rng.Float64()),
			cy:        float64(n) * (0.25 + 0.5*rng.Float64()),
			cz:        float64(n) * (0.25 + 0.5*rng.Float64()),
			rx:        float64(n) * (0.05 + 0.10*rng.Float64()),
			ry:        float64(n) * (0.05 + 0.10*rng.Float64()),
			rz:        float64(n) * (0.05 + 0.10*rng.Float64()),
			intensity: 0.6 + 0.4*rng.Float64(),
		}
	}

	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v := float64(opts.NoiseSigma) * rng.NormFloat64()
				inside := false
				for _, s := range shapes {
					dx := (float64(x) - s.cx) / s.rx
					dy := (float64(y) - s.cy) / s.ry
					dz := (float64(z) - s.cz) / s.rz
					if dx*dx+dy*dy+dz*dz <= 1 {
						v += s.intensity
						inside = true
					}
				}
				image.Set(x, y, z, float32(v))
				if inside {
					label.Set(x, y, z, 1)
				}
			}
		}
	}
	return image, label
}
