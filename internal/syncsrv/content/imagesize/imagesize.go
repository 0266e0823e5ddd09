// Package imagesize reads the pixel dimensions of raster images.
package imagesize

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions are nil when the size could not be determined.
type Dimensions struct {
	Width  *int
	Height *int
}

var supported = map[string]bool{
	"png":  true,
	"jpg":  true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
	"tiff": true,
}

// NormalizeExtension lower cases ext, drops a leading dot and folds the
// aliases jpeg and tif.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	}
	return ext
}

// IsSupported reports whether files with extension ext are probed.
func IsSupported(ext string) bool {
	return supported[NormalizeExtension(ext)]
}

// Probe decodes only the image header. Unsupported extensions and corrupt
// data yield empty Dimensions; Probe never fails.
func Probe(content []byte, ext string) Dimensions {
	if !IsSupported(ext) || len(content) == 0 {
		return Dimensions{}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}
	}
	w, h := cfg.Width, cfg.Height
	return Dimensions{Width: &w, Height: &h}
}
