package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	rgba, err := DecodePNG(encodePNG(t, src))
	if err != nil {
		t.Fatalf("DecodePNG: unexpected error: %v", err)
	}
	if rgba.Rect.Dx() != 3 || rgba.Rect.Dy() != 2 {
		t.Fatalf("decoded size %v", rgba.Rect)
	}
	if len(rgba.Pix) != 3*2*4 {
		t.Fatalf("got %d texel bytes, want %d", len(rgba.Pix), 3*2*4)
	}
	if got := rgba.RGBAAt(2, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("texel (2,1) = %v", got)
	}
}

func TestDecodePNGInvalid(t *testing.T) {
	if _, err := DecodePNG([]byte("not a png")); err == nil {
		t.Fatal("DecodePNG: garbage accepted")
	}
}
