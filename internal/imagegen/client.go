package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

var responseModalities = []string{"TEXT", "IMAGE"}

// Client implements Generator using the Gemini API backend.
type Client struct {
	genai  *genai.Client
	logger zerolog.Logger
}

var _ Generator = (*Client)(nil)

// Option customizes the underlying genai client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPClient = hc
	}
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{
		genai:  client,
		logger: logger.With().Str("component", "imagegen").Logger(),
	}, nil
}

// Generate sends req and extracts the image. When the response has no image
// part the error is ErrNoImage and the returned Result still carries any text
// the model sent back.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	contents := buildContents(req)
	config := buildConfig(req)

	c.logger.Debug().
		Str("model", req.Model).
		Bool("editing", req.Editing()).
		Str("image_size", config.ImageConfig.ImageSize).
		Str("aspect_ratio", config.ImageConfig.AspectRatio).
		Int("parts", len(contents[0].Parts)).
		Msg("sending GenerateContent request")

	resp, err := c.genai.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, describeError(err)
	}

	result, err := parseResponse(resp)
	if result != nil {
		c.logger.Debug().
			Int("texts", len(result.Texts)).
			Int("image_bytes", len(result.Image)).
			Int("extra_images", result.ExtraImages).
			Msg("received response")
	}
	return result, err
}

// buildContents returns the prompt alone, or the source image followed by the
// prompt when editing.
func buildContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if req.Editing() {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     req.Input.Data,
				MIMEType: req.Input.MIMEType,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})
	return []*genai.Content{{Role: "user", Parts: parts}}
}

// buildConfig always sets the image size. The aspect ratio is left out when
// editing so the API keeps the source's proportions.
func buildConfig(req Request) *genai.GenerateContentConfig {
	imageConfig := &genai.ImageConfig{
		ImageSize: string(req.Resolution),
	}
	if !req.Editing() {
		imageConfig.AspectRatio = string(req.AspectRatio)
	}
	return &genai.GenerateContentConfig{
		ResponseModalities: responseModalities,
		ImageConfig:        imageConfig,
	}
}

func parseResponse(resp *genai.GenerateContentResponse) (*Result, error) {
	result := &Result{}
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return result, fmt.Errorf("%w: prompt blocked (%s)", ErrNoImage, resp.PromptFeedback.BlockReason)
		}
		return result, fmt.Errorf("%w: empty response from model", ErrNoImage)
	}

	var parts []*genai.Part
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.Content != nil {
			parts = candidate.Content.Parts
			break
		}
	}

	for _, part := range parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			result.Texts = append(result.Texts, part.Text)
			result.Text = part.Text
		}
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		if result.Image != nil {
			result.ExtraImages++
			continue
		}
		data, err := decodeInlineData(part.InlineData.Data)
		if err != nil {
			return result, err
		}
		result.Image = data
		result.MIMEType = part.InlineData.MIMEType
		if result.MIMEType == "" {
			result.MIMEType = mimetype.Detect(data).String()
		}
	}

	if result.Image == nil {
		return result, ErrNoImage
	}
	return result, nil
}

var base64Re = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// decodeInlineData returns image bytes as-is and decodes inline data that
// arrived as base64 text.
func decodeInlineData(data []byte) ([]byte, error) {
	if strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return data, nil
	}
	text := strings.TrimSpace(string(data))
	if !base64Re.MatchString(text) {
		return data, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return decoded, nil
}

// describeError maps API failures to the messages users act on.
func describeError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		apiErr = *apiErrPtr
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return ErrAuth
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	case apiErr.Message != "":
		return fmt.Errorf("API error (%d): %s", apiErr.Code, apiErr.Message)
	default:
		return fmt.Errorf("API error (%d)", apiErr.Code)
	}
}
