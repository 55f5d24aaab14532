package params

import "fmt"

// FloatPoint is a 2D point value, used for parameters and instrument
// properties that describe positions (beam center, probe position, etc.).
type FloatPoint struct {
	X float64
	Y float64
}

func (p FloatPoint) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Well-known frame parameter keys. Sources are free to define more;
// the controller never interprets keys beyond passing them through.
const (
	KeyExposureMs  = "exposure_ms"
	KeyBinning     = "binning"
	KeyWidth       = "width"
	KeyHeight      = "height"
	KeyFovNm       = "fov_nm"
	KeyCenter      = "center"
	KeyPixelTimeUs = "pixel_time_us"
)

// FrameParameters configures how a single frame is acquired (exposure,
// binning, scan size, etc.). It is an opaque mapping as far as the
// controller is concerned: only the source gives keys meaning.
//
// Allowed value types: bool, int, float64, string, FloatPoint.
type FrameParameters map[string]any

// Clone returns an independent copy. Mutating the clone never affects
// the original; the controller relies on this to snapshot parameters
// at frame boundaries.
func (fp FrameParameters) Clone() FrameParameters {
	if fp == nil {
		return nil
	}
	out := make(FrameParameters, len(fp))
	for k, v := range fp {
		out[k] = v
	}
	return out
}

// Equal reports whether both parameter sets hold the same keys with the
// same values. Two nil maps are equal; nil and empty are equal too.
func (fp FrameParameters) Equal(other FrameParameters) bool {
	if len(fp) != len(other) {
		return false
	}
	for k, v := range fp {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Float returns the value for key as a float64, accepting stored ints.
// Returns def if the key is absent or not numeric.
func (fp FrameParameters) Float(key string, def float64) float64 {
	switch v := fp[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int returns the value for key as an int, accepting stored float64
// values with no fractional part. Returns def otherwise.
func (fp FrameParameters) Int(key string, def int) int {
	switch v := fp[key].(type) {
	case int:
		return v
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Bool returns the value for key as a bool, or def.
func (fp FrameParameters) Bool(key string, def bool) bool {
	if v, ok := fp[key].(bool); ok {
		return v
	}
	return def
}

// Str returns the value for key as a string, or def.
func (fp FrameParameters) Str(key string, def string) string {
	if v, ok := fp[key].(string); ok {
		return v
	}
	return def
}

// Point returns the value for key as a FloatPoint, or def.
func (fp FrameParameters) Point(key string, def FloatPoint) FloatPoint {
	if v, ok := fp[key].(FloatPoint); ok {
		return v
	}
	return def
}

// With returns a clone with key set to value. Convenient for deriving
// variants in calling code and tests.
func (fp FrameParameters) With(key string, value any) FrameParameters {
	out := fp.Clone()
	if out == nil {
		out = FrameParameters{}
	}
	out[key] = value
	return out
}
