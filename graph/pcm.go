package graph

import (
	"encoding/binary"
)

// floatToBytes converts stereo float frames to interleaved int16 LE bytes
// Applies soft limiting before hard clip; out must hold len(in)*AudioBytesPerFrame bytes
func floatToBytes(in [][2]float64, out []byte) {
	for i, frame := range in {
		idx := i * 4
		binary.LittleEndian.PutUint16(out[idx:], uint16(toInt16(frame[0])))
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(toInt16(frame[1])))
	}
}

func toInt16(v float64) int16 {
	// Soft limiter (tanh-style)
	if v > 0.8 {
		v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
	} else if v < -0.8 {
		v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
	}

	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}
