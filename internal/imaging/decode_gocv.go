//go:build gocv

package imaging

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backend names the active decoder.
const Backend = "gocv"

// decode tries the pure-Go decoders first and falls back to OpenCV, which
// understands formats the standard library does not (JPEG 2000, PPM, ...).
func decode(data []byte) (image.Image, string, error) {
	if img, format, err := decodeStd(data); err == nil {
		return img, format, nil
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, "", fmt.Errorf("%w: decoded image is empty", ErrUnsupported)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return img, "opencv", nil
}
