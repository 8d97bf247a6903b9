// Package pipeline runs the per-image loop: generate, write, record.
//
// Images are produced strictly one after another. In single mode any failure
// ends the run; in batch mode a failed image is reported and skipped, and the
// run only fails when nothing at all was produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finbarr/nano-banana/internal/gallery"
	"github.com/finbarr/nano-banana/internal/imagegen"
	"github.com/finbarr/nano-banana/internal/imaging"
	"github.com/finbarr/nano-banana/internal/options"
	"github.com/finbarr/nano-banana/internal/ui"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrNoImagesGenerated is returned when a batch finishes with zero successes.
var ErrNoImagesGenerated = errors.New("no images were successfully generated")

// Plan is a validated invocation.
type Plan struct {
	Options options.Options
	// Input is the loaded source image, nil outside editing mode.
	Input *imaging.Input
	// Resolution is the effective resolution after auto-detection.
	Resolution options.Resolution
}

// Summary describes what a run produced.
type Summary struct {
	Dir         string
	Requested   int
	Images      []gallery.GeneratedImage
	Failures    int
	PromptsPath string
	GalleryPath string
}

type Runner struct {
	Generator imagegen.Generator
	Printer   *ui.Printer
	Logger    zerolog.Logger
	// Now is used for the timestamped output directory; defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes plan. The returned Summary is non-nil even on error.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Summary, error) {
	opts := plan.Options
	summary := &Summary{Requested: opts.Count}

	dir, err := r.prepareDir(opts)
	if err != nil {
		return summary, err
	}
	summary.Dir = dir
	r.Logger.Debug().Str("dir", dir).Int("count", opts.Count).Msg("output directory ready")

	for i := 1; i <= opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if opts.Batch() {
			r.Printer.Info("[%d/%d] Generating...", i, opts.Count)
		}

		img, err := r.generateOne(ctx, plan, dir, i)
		if err != nil {
			if !opts.Batch() {
				return summary, err
			}
			r.Printer.Error("Error generating image %d/%d: %v", i, opts.Count, err)
			summary.Failures++
			continue
		}

		summary.Images = append(summary.Images, *img)
		r.Printer.Success("Image saved: %s", img.Path)
		if !opts.Batch() {
			r.Printer.Println("MEDIA: %s", img.Path)
		}
	}

	if !opts.Batch() {
		return summary, nil
	}
	return summary, r.finishBatch(summary, opts)
}

// prepareDir creates the directory images are written into: a fresh
// timestamped directory under --out-dir, or the parent of --filename.
func (r *Runner) prepareDir(opts options.Options) (string, error) {
	dir := filepath.Dir(opts.Filename)
	if opts.OutDir != "" {
		dir = filepath.Join(opts.OutDir, options.RunDirName(r.now()))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return dir, nil
}

func (r *Runner) generateOne(ctx context.Context, plan Plan, dir string, index int) (*gallery.GeneratedImage, error) {
	opts := plan.Options
	path := opts.OutputPath(dir, index)

	req := imagegen.Request{
		Prompt:      opts.Prompt,
		Model:       opts.Model,
		Resolution:  plan.Resolution,
		AspectRatio: opts.AspectRatio,
		Input:       plan.Input,
	}

	msg := fmt.Sprintf("Generating image with resolution %s, aspect ratio %s", req.Resolution, req.AspectRatio)
	if req.Editing() {
		msg = fmt.Sprintf("Editing image with resolution %s", req.Resolution)
	}
	stop := r.Printer.StartSpinner(msg)
	res, err := r.Generator.Generate(ctx, req)
	stop()

	if res != nil {
		for _, text := range res.Texts {
			r.Printer.Info("Model response: %s", text)
		}
	}
	if err != nil {
		return nil, err
	}
	if res.ExtraImages > 0 {
		r.Printer.Warn("Response contained %d extra image(s); keeping the first", res.ExtraImages)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	n, err := imaging.WritePNG(path, res.Image)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Str("path", abs).Int64("bytes", n).Str("source_mime", res.MIMEType).Msg("image written")

	img := &gallery.GeneratedImage{
		Filename:    filepath.Base(path),
		Path:        abs,
		Prompt:      opts.Prompt,
		Resolution:  plan.Resolution,
		AspectRatio: opts.AspectRatio,
		Model:       opts.Model,
	}
	if res.HasText() {
		img.ModelText = lo.ToPtr(res.Text)
	}
	return img, nil
}

func (r *Runner) finishBatch(summary *Summary, opts options.Options) error {
	if len(summary.Images) == 0 {
		return ErrNoImagesGenerated
	}

	path, err := gallery.WritePrompts(summary.Dir, summary.Images)
	if err != nil {
		return err
	}
	summary.PromptsPath = path
	r.Printer.Success("Metadata saved: %s", path)

	if !opts.NoGallery {
		path, err := gallery.WriteGallery(summary.Dir, summary.Images)
		if err != nil {
			return err
		}
		summary.GalleryPath = path
		r.Printer.Success("Gallery saved: %s", path)
	}

	r.Printer.Println("Generated %d/%d images in %s", len(summary.Images), summary.Requested, summary.Dir)
	return nil
}
