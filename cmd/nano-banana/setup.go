package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/finbarr/nano-banana/internal/config"
	"github.com/finbarr/nano-banana/internal/options"
	"github.com/finbarr/nano-banana/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store an API key and default model in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
}

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showConfig()
		},
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "nano-banana %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	p := ui.New(a.stdout, a.stderr, false)
	reader := bufio.NewReader(a.stdin)

	fmt.Fprintf(a.stderr, "\n%s\n\n", p.Bold("nano-banana setup"))

	fmt.Fprint(a.stderr, "Enter your Gemini API key")
	if cfg.APIKey != "" {
		fmt.Fprintf(a.stderr, " (current: %s)", config.Mask(cfg.APIKey))
	}
	fmt.Fprint(a.stderr, ": ")

	key, err := a.readSecret(reader)
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}
	if key != "" {
		cfg.APIKey = key
	}
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}

	current := cfg.Model
	if current == "" {
		current = options.DefaultModel
	}
	fmt.Fprintf(a.stderr, "Default model [flash/pro or a full name] (current: %s): ", current)
	model, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("reading model: %w", err)
	}
	if model != "" {
		if _, err := options.ResolveModel(model); err != nil {
			return err
		}
		cfg.Model = model
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	p.Success("Config saved to %s", config.Path())
	return nil
}

// readSecret reads without echo when stdin is a terminal.
func (a *app) readSecret(r *bufio.Reader) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(r)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	p := ui.New(a.stdout, a.stderr, false)

	fmt.Fprintf(a.stderr, "\n%s\n\n", p.Bold("nano-banana config"))
	fmt.Fprintf(a.stderr, "  %s  %s\n", p.Bold("Config file:"), config.Path())

	if cfg.APIKey != "" {
		fmt.Fprintf(a.stderr, "  %s      %s\n", p.Bold("API key:"), config.Mask(cfg.APIKey))
	} else {
		fmt.Fprintf(a.stderr, "  %s      (not set)\n", p.Bold("API key:"))
	}
	model := cfg.Model
	if model == "" {
		model = options.DefaultModel + " (default)"
	}
	fmt.Fprintf(a.stderr, "  %s        %s\n", p.Bold("Model:"), model)

	// Show env var overrides
	if env.APIKey != "" {
		fmt.Fprintf(a.stderr, "\n  GEMINI_API_KEY: set (overrides config)\n")
	}
	if env.Model != "" {
		fmt.Fprintf(a.stderr, "  NANOBANANA_MODEL: %s (overrides config)\n", env.Model)
	}
	fmt.Fprintln(a.stderr)
	return nil
}
