package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/finbarr/nano-banana/internal/config"
	"github.com/finbarr/nano-banana/internal/imagegen"
	"github.com/finbarr/nano-banana/internal/imaging"
	"github.com/finbarr/nano-banana/internal/logging"
	"github.com/finbarr/nano-banana/internal/options"
	"github.com/finbarr/nano-banana/internal/pipeline"
	"github.com/finbarr/nano-banana/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// generatorFactory builds the Generator once credentials are known.
type generatorFactory func(ctx context.Context, apiKey string, logger zerolog.Logger) (imagegen.Generator, error)

type app struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	newGenerator generatorFactory
	now          func() time.Time
}

func newGeminiGenerator(ctx context.Context, apiKey string, logger zerolog.Logger) (imagegen.Generator, error) {
	client, err := imagegen.NewClient(ctx, apiKey, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func main() {
	a := &app{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		newGenerator: newGeminiGenerator,
		now:          time.Now,
	}
	os.Exit(a.run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code.
func (a *app) run(args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		ui.New(a.stdout, a.stderr, false).Error("%v", err)
		return 1
	}
	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	opts := options.Default()
	var resolution, aspectRatio string

	cmd := &cobra.Command{
		Use:   "nano-banana",
		Short: "Generate or edit images with the Gemini image models",
		Long: `nano-banana generates images from a text prompt, or edits an existing image,
using Google's Gemini image generation API.

A single image is written to --filename (or image.png under --out-dir) and its
absolute path is printed as "MEDIA: <path>". With --count > 1 the images are
written to a timestamped directory under --out-dir together with prompts.json
and an index.html gallery.`,
		Example: `  nano-banana --prompt "a cute robot" --filename robot.png
  nano-banana --prompt "mountain sunset" --count 4 --out-dir ./gallery
  nano-banana --prompt "add rain" --input-image photo.jpg --filename rainy.png
  nano-banana --prompt "cyberpunk city" --aspect-ratio 16:9 --resolution 2K`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Resolution = options.Resolution(resolution)
			opts.AspectRatio = options.AspectRatio(aspectRatio)
			return a.generate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Prompt, "prompt", "p", "", "Image description/prompt (required)")
	flags.StringVarP(&opts.Filename, "filename", "f", "", "Output filename (e.g., sunset-mountains.png). Required for a single image without --out-dir")
	flags.StringVarP(&opts.InputImage, "input-image", "i", "", "Optional input image path for editing/modification")
	flags.StringVarP(&resolution, "resolution", "r", string(options.DefaultResolution), "Output resolution: 1K, 2K, or 4K")
	flags.StringVarP(&aspectRatio, "aspect-ratio", "a", string(options.DefaultAspectRatio), "Aspect ratio: 1:1, 3:4, 4:3, 9:16, 16:9 (ignored when editing)")
	flags.IntVarP(&opts.Count, "count", "n", 1, "Number of images to generate")
	flags.StringVarP(&opts.OutDir, "out-dir", "o", "", "Output directory (creates a timestamped subdirectory)")
	flags.StringVarP(&opts.Model, "model", "m", options.DefaultModel, "Model: flash, pro, or a full model name")
	flags.StringVarP(&opts.APIKey, "api-key", "k", "", "Gemini API key (overrides GEMINI_API_KEY)")
	flags.BoolVar(&opts.NoGallery, "no-gallery", false, "Skip HTML gallery generation in batch mode")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "Suppress informational output")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("prompt")

	cmd.AddCommand(a.newSetupCmd(), a.newConfigCmd(), a.newVersionCmd())
	return cmd
}

func (a *app) generate(cmd *cobra.Command, opts options.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts.Model, err = options.ResolveModel(config.ResolveModel(opts.Model, cmd.Flags().Changed("model"), env, cfg))
	if err != nil {
		return err
	}

	level := env.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger := logging.New(a.stderr, level)
	printer := ui.New(a.stdout, a.stderr, opts.Quiet)

	apiKey, err := config.ResolveAPIKey(opts.APIKey, env, cfg)
	if err != nil {
		return err
	}

	plan := pipeline.Plan{Options: opts, Resolution: opts.Resolution}
	if opts.Editing() {
		input, err := imaging.LoadInput(opts.InputImage)
		if err != nil {
			return fmt.Errorf("loading input image: %w", err)
		}
		printer.Info("Loaded input image: %s", opts.InputImage)

		res, auto := imaging.EffectiveResolution(opts.Resolution, input)
		if auto {
			printer.Info("Auto-detected resolution: %s (from input %dx%d)", res, input.Width, input.Height)
		}
		plan.Input = input
		plan.Resolution = res
	}

	gen, err := a.newGenerator(cmd.Context(), apiKey, logger)
	if err != nil {
		return err
	}
	logger.Debug().Str("model", opts.Model).Int("count", opts.Count).Bool("editing", opts.Editing()).Msg("starting run")

	runner := &pipeline.Runner{
		Generator: gen,
		Printer:   printer,
		Logger:    logger,
		Now:       a.now,
	}
	_, err = runner.Run(cmd.Context(), plan)
	return err
}
