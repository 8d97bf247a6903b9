// Package gallery writes the batch-mode artifacts: the prompts.json metadata
// sidecar and a static index.html page showing every image.
package gallery

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/finbarr/nano-banana/internal/options"
)

const (
	PromptsFile = "prompts.json"
	IndexFile   = "index.html"

	previewRunes = 50
)

//go:embed assets/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"preview": Preview,
}).Parse(indexHTML))

// GeneratedImage describes one image written to disk. It is created once per
// successful generation and never modified.
type GeneratedImage struct {
	Filename    string              `json:"filename"`
	Path        string              `json:"-"`
	Prompt      string              `json:"prompt"`
	Resolution  options.Resolution  `json:"resolution"`
	AspectRatio options.AspectRatio `json:"aspect_ratio"`
	Model       string              `json:"model"`
	ModelText   *string             `json:"model_text"`
}

// Preview shortens a prompt for use as alt text.
func Preview(prompt string) string {
	r := []rune(prompt)
	if len(r) <= previewRunes {
		return prompt
	}
	return string(r[:previewRunes]) + "..."
}

// WritePrompts writes images as a JSON array to dir/prompts.json, in order.
func WritePrompts(dir string, images []GeneratedImage) (string, error) {
	if images == nil {
		images = []GeneratedImage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(images); err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}

	path := filepath.Join(dir, PromptsFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	return path, nil
}

// RenderGallery executes the gallery template. All interpolated values are
// escaped by html/template.
func RenderGallery(w io.Writer, images []GeneratedImage) error {
	return indexTmpl.Execute(w, images)
}

// WriteGallery renders the gallery into dir/index.html.
func WriteGallery(dir string, images []GeneratedImage) (string, error) {
	var buf bytes.Buffer
	if err := RenderGallery(&buf, images); err != nil {
		return "", fmt.Errorf("rendering gallery: %w", err)
	}

	path := filepath.Join(dir, IndexFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing gallery: %w", err)
	}
	return path, nil
}
