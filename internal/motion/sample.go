package motion

import "math"

// Sample represents one 3-axis acceleration reading in g.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Magnitude float64 `json:"magnitude"` // Euclidean norm of X, Y, Z
}

// NewSample builds a Sample and computes its magnitude.
func NewSample(x, y, z float64) Sample {
	return Sample{X: x, Y: y, Z: z, Magnitude: math.Sqrt(x*x + y*y + z*z)}
}

// AccelReader is anything that can provide one acceleration reading in g.
// Implementations: MPU-9250 over SPI, mock source, scripted source for tests.
type AccelReader interface {
	ReadAccel() (x, y, z float64, err error)
}
