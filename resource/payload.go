// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"fmt"
	"image"
	_ "image/jpeg" // decoders
	_ "image/png"
	"io"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Payload errors
var (
	ErrWrongKind  = errors.New("payload is of a different kind")
	ErrEmptyImage = errors.New("image has no pixels")
)

// PayloadKind tells which variant a TexturePayload holds.
type PayloadKind int

// Payload kinds
const (
	PayloadRaw PayloadKind = iota
	PayloadCompressed
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadRaw:
		return "raw"
	case PayloadCompressed:
		return "compressed"
	}
	return fmt.Sprintf("PayloadKind(%d)", int(k))
}

// RawPixelPayload is tightly packed 8 bit RGBA.
type RawPixelPayload struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

// CompressedTexturePayload holds block compressed levels, largest first.
// Format is the native device format number.
type CompressedTexturePayload struct {
	Format uint32
	Width  uint32
	Height uint32
	Levels [][]byte
}

// TexturePayload is either raw or compressed texture data.
type TexturePayload struct {
	kind       PayloadKind
	raw        RawPixelPayload
	compressed CompressedTexturePayload
}

// NewRawPayload wraps raw pixels.
func NewRawPayload(p RawPixelPayload) TexturePayload {
	return TexturePayload{kind: PayloadRaw, raw: p}
}

// NewCompressedPayload wraps compressed levels.
func NewCompressedPayload(p CompressedTexturePayload) TexturePayload {
	return TexturePayload{kind: PayloadCompressed, compressed: p}
}

// Kind returns the held variant.
func (t TexturePayload) Kind() PayloadKind { return t.kind }

// Raw returns the raw variant.
func (t TexturePayload) Raw() (RawPixelPayload, error) {
	if t.kind != PayloadRaw {
		return RawPixelPayload{}, errors.Wrap(ErrWrongKind, t.kind.String())
	}
	return t.raw, nil
}

// Compressed returns the compressed variant.
func (t TexturePayload) Compressed() (CompressedTexturePayload, error) {
	if t.kind != PayloadCompressed {
		return CompressedTexturePayload{}, errors.Wrap(ErrWrongKind, t.kind.String())
	}
	return t.compressed, nil
}

// Size is the number of bytes the payload would upload.
func (t TexturePayload) Size() int {
	switch t.kind {
	case PayloadRaw:
		return len(t.raw.Pix)
	case PayloadCompressed:
		var n int
		for _, l := range t.compressed.Levels {
			n += len(l)
		}
		return n
	}
	return 0
}

// DecodeTexture decodes a png, jpeg or bmp image into a raw payload.
func DecodeTexture(r io.Reader) (TexturePayload, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return TexturePayload{}, errors.Wrap(err, "image.Decode()")
	}
	b := img.Bounds()
	if b.Empty() {
		return TexturePayload{}, ErrEmptyImage
	}
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)
	return NewRawPayload(pixels(canvas)), nil
}

// DecodeTextureScaled decodes like DecodeTexture and resamples the result
// to width by height.
func DecodeTextureScaled(r io.Reader, width, height int) (TexturePayload, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return TexturePayload{}, errors.Wrap(err, "image.Decode()")
	}
	if img.Bounds().Empty() || width <= 0 || height <= 0 {
		return TexturePayload{}, ErrEmptyImage
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)
	return NewRawPayload(pixels(canvas)), nil
}

func pixels(img *image.RGBA) RawPixelPayload {
	return RawPixelPayload{
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
		Pix:    img.Pix,
	}
}
