// Package options holds the command-line surface of nano-banana: the flag values,
// their enums, validation rules, and how output paths are derived from them.
package options

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Resolution is the requested output image size.
type Resolution string

const (
	Res1K Resolution = "1K"
	Res2K Resolution = "2K"
	Res4K Resolution = "4K"
)

// AspectRatio is the requested output aspect ratio (generation mode only).
type AspectRatio string

var (
	validResolutions  = []Resolution{Res1K, Res2K, Res4K}
	validAspectRatios = []AspectRatio{"1:1", "3:4", "4:3", "9:16", "16:9"}
)

// Model names
const (
	DefaultModel = "gemini-2.0-flash-preview-image-generation"
	ModelFlash   = "gemini-2.5-flash-image"
	ModelPro     = "gemini-3-pro-image-preview"
)

var modelAliases = map[string]string{
	"flash": ModelFlash,
	"pro":   ModelPro,
}

const (
	DefaultResolution  = Res1K
	DefaultAspectRatio = AspectRatio("1:1")
	// DefaultFilename is used in single mode when only --out-dir is given.
	DefaultFilename = "image.png"
	runDirPrefix    = "nano-banana-"
)

var (
	ErrPromptRequired   = errors.New("--prompt is required")
	ErrOutDirRequired   = errors.New("--out-dir is required when --count > 1")
	ErrFilenameRequired = errors.New("--filename or --out-dir is required")
	ErrInvalidCount     = errors.New("--count must be at least 1")
	ErrModelRequired    = errors.New("--model must not be empty")
)

// Options are the parsed flag values for one invocation.
type Options struct {
	Prompt      string
	Filename    string
	InputImage  string
	Resolution  Resolution
	AspectRatio AspectRatio
	Count       int
	OutDir      string
	Model       string
	APIKey      string
	NoGallery   bool
	Quiet       bool
	Verbose     bool
}

// Default returns Options populated with the flag defaults.
func Default() Options {
	return Options{
		Resolution:  DefaultResolution,
		AspectRatio: DefaultAspectRatio,
		Count:       1,
		Model:       DefaultModel,
	}
}

// Batch reports whether this invocation produces more than one image.
func (o Options) Batch() bool {
	return o.Count > 1
}

// Editing reports whether a source image was supplied.
func (o Options) Editing() bool {
	return o.InputImage != ""
}

// Validate checks the flag combination and normalizes the model name.
// It touches neither the network nor the filesystem.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Prompt) == "" {
		return ErrPromptRequired
	}
	switch {
	case o.Count < 1:
		return ErrInvalidCount
	case o.Count > 1 && o.OutDir == "":
		return ErrOutDirRequired
	case o.Count == 1 && o.Filename == "" && o.OutDir == "":
		return ErrFilenameRequired
	}
	if err := ValidateResolution(o.Resolution); err != nil {
		return err
	}
	if err := ValidateAspectRatio(o.AspectRatio); err != nil {
		return err
	}
	model, err := ResolveModel(o.Model)
	if err != nil {
		return err
	}
	o.Model = model
	return nil
}

func ValidateResolution(r Resolution) error {
	if !lo.Contains(validResolutions, r) {
		return fmt.Errorf("invalid resolution %q (valid: %s)", r, joinValues(validResolutions))
	}
	return nil
}

func ValidateAspectRatio(ar AspectRatio) error {
	if !lo.Contains(validAspectRatios, ar) {
		return fmt.Errorf("invalid aspect ratio %q (valid: %s)", ar, joinValues(validAspectRatios))
	}
	return nil
}

// ResolveModel maps an alias to a full model name. Any other non-empty name
// is passed through unchanged so new models work without a release.
func ResolveModel(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if full, ok := modelAliases[alias]; ok {
		return full, nil
	}
	if alias == "" {
		return "", ErrModelRequired
	}
	return alias, nil
}

// RunDirName is the timestamped directory created under --out-dir.
func RunDirName(t time.Time) string {
	return runDirPrefix + t.Format("20060102-150405")
}

// BatchFilename returns the file name for the index-th image (1-based) of a batch.
func BatchFilename(index int) string {
	return fmt.Sprintf("image-%03d.png", index)
}

// OutputPath computes where the index-th image is written inside dir.
func (o Options) OutputPath(dir string, index int) string {
	if o.Batch() {
		return filepath.Join(dir, BatchFilename(index))
	}
	if o.Filename == "" {
		return filepath.Join(dir, DefaultFilename)
	}
	if filepath.IsAbs(o.Filename) || o.OutDir == "" {
		return o.Filename
	}
	return filepath.Join(dir, o.Filename)
}

func joinValues[T ~string](values []T) string {
	return strings.Join(lo.Map(values, func(v T, _ int) string { return string(v) }), ", ")
}
