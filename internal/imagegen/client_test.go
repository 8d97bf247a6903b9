package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finbarr/nano-banana/internal/imaging"
	"github.com/finbarr/nano-banana/internal/options"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// Helper: create a minimal PNG for API responses
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{0, 255, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func generationRequest() Request {
	return Request{
		Prompt:      "a lobster astronaut",
		Model:       options.DefaultModel,
		Resolution:  options.Res2K,
		AspectRatio: "16:9",
	}
}

func editingRequest() Request {
	req := generationRequest()
	req.Input = &imaging.Input{Data: []byte("source-bytes"), MIMEType: "image/jpeg", Width: 10, Height: 10}
	return req
}

func TestBuildConfig(t *testing.T) {
	t.Run("generation includes aspect ratio", func(t *testing.T) {
		cfg := buildConfig(generationRequest())
		require.NotNil(t, cfg.ImageConfig)
		assert.Equal(t, "2K", cfg.ImageConfig.ImageSize)
		assert.Equal(t, "16:9", cfg.ImageConfig.AspectRatio)
		assert.Equal(t, []string{"TEXT", "IMAGE"}, cfg.ResponseModalities)
	})

	t.Run("editing omits aspect ratio", func(t *testing.T) {
		cfg := buildConfig(editingRequest())
		require.NotNil(t, cfg.ImageConfig)
		assert.Equal(t, "2K", cfg.ImageConfig.ImageSize)
		assert.Empty(t, cfg.ImageConfig.AspectRatio)
	})
}

func TestBuildContents(t *testing.T) {
	contents := buildContents(generationRequest())
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "a lobster astronaut", contents[0].Parts[0].Text)

	contents = buildContents(editingRequest())
	require.Len(t, contents[0].Parts, 2)
	require.NotNil(t, contents[0].Parts[0].InlineData, "source image comes first")
	assert.Equal(t, "image/jpeg", contents[0].Parts[0].InlineData.MIMEType)
	assert.Equal(t, "a lobster astronaut", contents[0].Parts[1].Text)
}

func responseWith(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestParseResponse(t *testing.T) {
	pngData := testPNG(t)

	t.Run("text and image", func(t *testing.T) {
		res, err := parseResponse(responseWith(
			&genai.Part{Text: "first"},
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: pngData}},
			&genai.Part{Text: "second"},
		))
		require.NoError(t, err)
		assert.Equal(t, pngData, res.Image)
		assert.Equal(t, "image/png", res.MIMEType)
		assert.Equal(t, []string{"first", "second"}, res.Texts)
		assert.Equal(t, "second", res.Text, "last text part wins")
	})

	t.Run("base64 text-encoded inline data", func(t *testing.T) {
		encoded := []byte(base64.StdEncoding.EncodeToString(pngData))
		res, err := parseResponse(responseWith(
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: encoded}},
		))
		require.NoError(t, err)
		assert.Equal(t, pngData, res.Image)
	})

	t.Run("extra images are counted", func(t *testing.T) {
		res, err := parseResponse(responseWith(
			&genai.Part{InlineData: &genai.Blob{Data: pngData}},
			&genai.Part{InlineData: &genai.Blob{Data: pngData}},
		))
		require.NoError(t, err)
		assert.Equal(t, 1, res.ExtraImages)
		assert.Equal(t, "image/png", res.MIMEType, "mime sniffed when missing")
	})

	t.Run("thoughts are skipped", func(t *testing.T) {
		res, err := parseResponse(responseWith(
			&genai.Part{Text: "thinking...", Thought: true},
			&genai.Part{InlineData: &genai.Blob{Data: pngData}},
		))
		require.NoError(t, err)
		assert.False(t, res.HasText())
	})

	t.Run("text only", func(t *testing.T) {
		res, err := parseResponse(responseWith(&genai.Part{Text: "I cannot draw that"}))
		assert.ErrorIs(t, err, ErrNoImage)
		require.NotNil(t, res)
		assert.Equal(t, "I cannot draw that", res.Text)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := parseResponse(&genai.GenerateContentResponse{})
		assert.ErrorIs(t, err, ErrNoImage)

		_, err = parseResponse(nil)
		assert.ErrorIs(t, err, ErrNoImage)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		_, err := parseResponse(&genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
		})
		assert.ErrorIs(t, err, ErrNoImage)
		assert.ErrorContains(t, err, "SAFETY")
	})
}

func TestDecodeInlineData(t *testing.T) {
	pngData := testPNG(t)

	got, err := decodeInlineData(pngData)
	require.NoError(t, err)
	assert.Equal(t, pngData, got)

	got, err = decodeInlineData([]byte(base64.StdEncoding.EncodeToString(pngData) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, pngData, got)

	_, err = decodeInlineData([]byte("abc"))
	assert.Error(t, err, "truncated base64 must fail")
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantMsg string
	}{
		{"401", genai.APIError{Code: 401, Message: "bad key"}, ErrAuth, "authentication failed"},
		{"403", genai.APIError{Code: 403}, ErrAuth, "authentication failed"},
		{"429", genai.APIError{Code: 429, Message: "quota"}, ErrRateLimited, "quota"},
		{"exhausted", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, ErrRateLimited, "rate limit"},
		{"400 with message", genai.APIError{Code: 400, Message: "bad prompt"}, nil, "API error (400): bad prompt"},
		{"500", genai.APIError{Code: 500}, nil, "API error (500)"},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 401}), ErrAuth, "authentication failed"},
		{"network", errors.New("dial tcp: connection refused"), nil, "generation failed: dial tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := describeError(tt.err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestClientGenerate(t *testing.T) {
	pngData := testPNG(t)

	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected API key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role": "model",
						"parts": []any{
							map[string]any{"text": "here you go"},
							map[string]any{"inlineData": map[string]any{
								"mimeType": "image/png",
								"data":     base64.StdEncoding.EncodeToString(pngData),
							}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, "test-key", zerolog.Nop(), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	res, err := client.Generate(ctx, generationRequest())
	require.NoError(t, err)
	assert.Equal(t, pngData, res.Image)
	assert.Equal(t, "here you go", res.Text)

	_, err = client.Generate(ctx, editingRequest())
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], `"aspectRatio":"16:9"`)
	assert.Contains(t, bodies[0], `"imageSize":"2K"`)
	assert.NotContains(t, bodies[1], "aspectRatio")
	assert.Contains(t, bodies[1], `"imageSize":"2K"`)
	assert.Contains(t, bodies[1], "inlineData")
}
