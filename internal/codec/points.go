// Package codec packs outline points into the fixed-width blob stored in the
// model_points column.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"rivermonitor/internal/model"
)

// PointSize is the encoded width of one point: two float32 values.
const PointSize = 8

// ErrCorruptEncoding is returned when a blob is not a whole number of points.
var ErrCorruptEncoding = errors.New("corrupt point encoding")

// EncodePoints writes each point as little-endian float32 x followed by y,
// in order, with no header or separator.
func EncodePoints(points []model.Point) []byte {
	buf := make([]byte, len(points)*PointSize)
	for i, p := range points {
		off := i * PointSize
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(p.Y))
	}
	return buf
}

// DecodePoints is the inverse of EncodePoints. The result is never nil.
func DecodePoints(blob []byte) ([]model.Point, error) {
	if len(blob)%PointSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorruptEncoding, len(blob), PointSize)
	}
	points := make([]model.Point, len(blob)/PointSize)
	for i := range points {
		off := i * PointSize
		points[i] = model.Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(blob[off:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(blob[off+4:])),
		}
	}
	return points, nil
}
