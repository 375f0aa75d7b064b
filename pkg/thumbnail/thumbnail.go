// Package thumbnail derives small square preview images from uploads.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultHeight is the side length of derived thumbnails in pixels.
const DefaultHeight = 40

// Ext is the extension of every derived thumbnail.
const Ext = ".png"

// ErrDerivation wraps every decode or encode failure.
var ErrDerivation = errors.New("thumbnail derivation failed")

// Result holds the derived image. Derived is false for passthrough inputs,
// in which case Data is the unchanged source.
type Result struct {
	Data    []byte
	Ext     string
	Derived bool
}

// Deriver scales raster images onto a transparent square canvas.
type Deriver struct {
	height int
}

// New creates a deriver with the given target height; non-positive
// values fall back to DefaultHeight.
func New(height int) *Deriver {
	if height <= 0 {
		height = DefaultHeight
	}
	return &Deriver{height: height}
}

// Height returns the canvas side length.
func (d *Deriver) Height() int {
	return d.height
}

// IsVector reports whether ext names a vector format that is never resized.
func IsVector(ext string) bool {
	return normalizeExt(ext) == "svg"
}

// Derive scales src so its height equals the target height, keeping the
// aspect ratio, and centers it horizontally on a transparent square canvas.
// The output is always PNG.
func (d *Deriver) Derive(src []byte, ext string) (*Result, error) {
	if IsVector(ext) {
		return &Result{Data: src, Ext: "." + normalizeExt(ext), Derived: false}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrDerivation, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDerivation)
	}

	resized := imaging.Resize(img, 0, d.height, imaging.Lanczos)
	canvas := imaging.New(d.height, d.height, color.Transparent)
	thumbnail := imaging.PasteCenter(canvas, resized)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: failed to encode thumbnail: %v", ErrDerivation, err)
	}

	return &Result{Data: buf.Bytes(), Ext: Ext, Derived: true}, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
