package utils

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	"github.com/cockroachdb/errors"
)

// DecodePNG decodes a PNG file into tightly packed RGBA texels.
func DecodePNG(data []byte) (*image.RGBA, error) {
	decodedImage, err := png.Decode(bytes.NewBuffer(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode png")
	}

	if rgba, ok := decodedImage.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}

	imageBounds := decodedImage.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, imageBounds.Dx(), imageBounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), decodedImage, imageBounds.Min, draw.Src)
	return rgba, nil
}
