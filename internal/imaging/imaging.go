// Package imaging loads source images for editing and writes generated
// images to disk as opaque PNG files.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/finbarr/nano-banana/internal/options"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Longer-edge thresholds for resolution auto-detection.
const (
	threshold4K = 3000
	threshold2K = 1500
)

// Input is a source image supplied for editing.
type Input struct {
	Path     string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// LoadInput reads the image at path and decodes its header. The raw bytes are
// kept so they can be sent to the API unchanged.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding input image %s: %w", path, err)
	}
	return &Input{
		Path:     path,
		Data:     data,
		MIMEType: sniffMIME(data),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func sniffMIME(data []byte) string {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "image/png"
	}
	return mt.String()
}

// DetectResolution picks an output resolution from the source's dimensions.
func DetectResolution(width, height int) options.Resolution {
	switch edge := max(width, height); {
	case edge >= threshold4K:
		return options.Res4K
	case edge >= threshold2K:
		return options.Res2K
	default:
		return options.Res1K
	}
}

// EffectiveResolution returns the resolution to request. Auto-detection from
// the input image only happens when the default resolution was requested; the
// boolean reports whether it did.
func EffectiveResolution(requested options.Resolution, in *Input) (options.Resolution, bool) {
	if in == nil || requested != options.DefaultResolution {
		return requested, false
	}
	return DetectResolution(in.Width, in.Height), true
}

// Flatten composites src onto an opaque white canvas of the same size.
// Images without transparency come out unchanged.
func Flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// HasAlpha reports whether img may contain non-opaque pixels.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// isRGB reports whether img already stores three color channels.
func isRGB(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.YCbCr:
		return true
	default:
		return false
	}
}

// WritePNG decodes encoded image bytes, flattens them and writes a PNG to path.
// Grayscale, paletted and other non-RGB sources are converted, so the file is
// always an opaque RGB PNG readable by everyone.
// The file is written under a temporary name and renamed into place, so a
// failed encode leaves nothing behind. It returns the number of bytes written.
func WritePNG(path string, data []byte) (int64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decoding generated image: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".nano-banana-*.png")
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if !isRGB(img) || HasAlpha(img) {
		img = Flatten(img)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return info.Size(), nil
}
