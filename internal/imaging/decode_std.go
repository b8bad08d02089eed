//go:build !gocv

package imaging

import "image"

// Backend names the active decoder.
const Backend = "std"

func decode(data []byte) (image.Image, string, error) {
	return decodeStd(data)
}
