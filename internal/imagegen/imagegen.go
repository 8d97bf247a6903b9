// Package imagegen talks to the Gemini image models through the official
// google.golang.org/genai SDK.
//
// One call to Generate issues exactly one GenerateContent request. Nothing is
// retried or cached; callers decide what a failure means for their run.
package imagegen

import (
	"context"
	"errors"

	"github.com/finbarr/nano-banana/internal/imaging"
	"github.com/finbarr/nano-banana/internal/options"
)

var (
	// ErrNoImage is returned when a response carries no inline image part.
	ErrNoImage = errors.New("no image was generated in response")
	// ErrAuth is returned when the API rejects the credential.
	ErrAuth = errors.New("authentication failed. Check your API key")
	// ErrRateLimited is returned when the API reports quota exhaustion.
	ErrRateLimited = errors.New("rate limit exceeded. Wait and try again")
)

// Request describes one image to generate or edit.
type Request struct {
	Prompt      string
	Model       string
	Resolution  options.Resolution
	AspectRatio options.AspectRatio
	// Input switches the request into editing mode when non-nil.
	Input *imaging.Input
}

// Editing reports whether the request modifies a source image.
func (r Request) Editing() bool {
	return r.Input != nil
}

// Result is what came back from one request.
type Result struct {
	// Image holds the encoded bytes of the first image part.
	Image    []byte
	MIMEType string
	// Texts are all text parts in response order; Text is the last of them.
	Texts []string
	Text  string
	// ExtraImages counts image parts after the first, which are ignored.
	ExtraImages int
}

// HasText reports whether the model returned any text.
func (r *Result) HasText() bool {
	return r != nil && len(r.Texts) > 0
}

// Generator produces one image per call.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
