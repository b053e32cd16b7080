package application

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const maxSummaryLength = 120

// RenderedDescription is a product description converted for display
type RenderedDescription struct {
	HTML    string
	Summary string
}

// DescriptionRenderer converts markdown product descriptions to HTML.
type DescriptionRenderer interface {
	Render(description string) (*RenderedDescription, error)
}

// mediaImageTransformer points relative image references at the media
// endpoint, so a description can embed one of the product's stored files.
type mediaImageTransformer struct {
	imageBaseURL string
}

func (t *mediaImageTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := string(img.Destination)
		if isRelativeReference(dest) {
			img.Destination = []byte(t.imageBaseURL + "/" + path.Base(dest))
		}

		return ast.WalkContinue, nil
	})
}

func isRelativeReference(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/") {
		return false
	}
	return !strings.Contains(dest, ":")
}

type goldmarkDescriptionRenderer struct {
	renderer goldmark.Markdown
}

// NewDescriptionRenderer builds a renderer that resolves relative image
// references against imageBaseURL. Raw HTML in descriptions is not passed
// through.
func NewDescriptionRenderer(imageBaseURL string) DescriptionRenderer {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(
				util.Prioritized(&mediaImageTransformer{imageBaseURL: strings.TrimSuffix(imageBaseURL, "/")}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &goldmarkDescriptionRenderer{
		renderer: renderer,
	}
}

func (r *goldmarkDescriptionRenderer) Render(description string) (*RenderedDescription, error) {
	if strings.TrimSpace(description) == "" {
		return &RenderedDescription{}, nil
	}

	var buf bytes.Buffer
	if err := r.renderer.Convert([]byte(description), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert description to HTML: %w", err)
	}

	return &RenderedDescription{
		HTML:    buf.String(),
		Summary: extractSummary(description),
	}, nil
}

// extractSummary returns the first paragraph of plain text, cut at a word
// boundary when it is too long.
func extractSummary(description string) string {
	var paragraphLines []string

	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		// Skip block markup before the first paragraph, stop at it after
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "```") ||
			strings.HasPrefix(trimmed, "---") ||
			strings.HasPrefix(trimmed, "***") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "+ ") ||
			strings.HasPrefix(trimmed, "|") ||
			strings.HasPrefix(trimmed, "![") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		paragraphLines = append(paragraphLines, trimmed)
	}

	if len(paragraphLines) == 0 {
		return ""
	}

	summary := strings.Join(paragraphLines, " ")

	if len(summary) > maxSummaryLength {
		summary = summary[:maxSummaryLength]
		if lastSpace := strings.LastIndexAny(summary, " \t"); lastSpace > 0 {
			summary = summary[:lastSpace]
		}
		summary += "..."
	}

	return summary
}
