package oto

import (
	"math"

	"github.com/vsariola/signals"
)

// FloatBufferTo16BitLE converts a float32 buffer to 16-bit little-endian
// integer samples, appending them to dst. Values are clamped to [-1, 1].
func FloatBufferTo16BitLE(buff []float32, dst []byte) []byte {
	for _, v := range buff {
		var uv int16
		if v < -1.0 {
			uv = -math.MaxInt16
		} else if v > 1.0 {
			uv = math.MaxInt16
		} else {
			uv = signals.ToPCM16(v)
		}
		dst = append(dst, byte(uv), byte(uv>>8))
	}
	return dst
}
