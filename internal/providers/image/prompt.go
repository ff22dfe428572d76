package image

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Negative prompt constants per mode. The image-to-image variant adds
// anti-photo terms so the model is biased toward stencil output instead of
// reproducing the photograph.
const (
	NegativePromptTextToImage  = "blurry, low quality, distorted, watermark, text"
	NegativePromptImageToImage = "blurry, low quality, distorted, watermark, text, photo, photograph, photorealistic skin"
)

// styleClauses maps known style-name fragments to canned descriptive clauses.
// Matching is by case-insensitive substring; ordering matters because the
// first matching fragment wins.
var styleClauses = []struct {
	fragment string
	clause   string
}{
	{"fine line", "fine line tattoo style, delicate thin lines, minimal shading"},
	{"fineline", "fine line tattoo style, delicate thin lines, minimal shading"},
	{"traditional", "traditional tattoo style, bold black outlines, solid colors"},
	{"realism", "realistic tattoo style, detailed shading, photorealistic"},
	{"geometric", "geometric tattoo style, clean lines, geometric patterns"},
	{"watercolor", "watercolor tattoo style, soft color washes, painterly edges"},
	{"blackwork", "blackwork tattoo style, dense black fields, strong contrast"},
	{"tribal", "tribal tattoo style, bold flowing black patterns"},
	{"japanese", "japanese tattoo style, irezumi motifs, dynamic composition"},
}

// KnownStyles enumerates the styles offered to clients; all-styles mode
// regenerates the composition once per entry.
var KnownStyles = []string{
	"Fine Line",
	"Traditional",
	"Realism",
	"Geometric",
	"Watercolor",
	"Blackwork",
	"Tribal",
	"Japanese",
}

// StyleClause resolves a style name to its descriptive prompt clause, falling
// back to a generic "{style} tattoo style" phrase for unknown styles.
func StyleClause(style string) string {
	lower := strings.ToLower(style)
	for _, entry := range styleClauses {
		if strings.Contains(lower, entry.fragment) {
			return entry.clause
		}
	}
	return fmt.Sprintf("%s tattoo style", strings.ToLower(strings.TrimSpace(style)))
}

var styleTitle = cases.Title(language.English)

// StyleDisplayName renders a style name for user-facing labels.
func StyleDisplayName(style string) string {
	return styleTitle.String(strings.ToLower(strings.TrimSpace(style)))
}

// BuildPrompt deterministically converts a design request into the prompt and
// negative-prompt pair for the given mode. Same request and mode always yield
// byte-identical output; there is no hidden randomness.
func BuildPrompt(req DesignRequest, mode Mode) (prompt, negative string) {
	var parts []string

	if subject := strings.TrimSpace(req.SubjectMatter); subject != "" {
		parts = append(parts, subject)
	}

	if len(req.Styles) > 0 {
		parts = append(parts, StyleClause(strings.Join(req.Styles, ", ")))
	}

	switch req.ColorPreference {
	case ColorFull:
		parts = append(parts, "colorful tattoo, vibrant colors")
	case ColorBlackAndWhite:
		parts = append(parts, "black and white tattoo, monochrome")
	default:
		parts = append(parts, "black and white tattoo design")
	}

	switch req.SizePreference {
	case SizeSmall:
		parts = append(parts, "small tattoo design, compact composition")
	case SizeMedium:
		parts = append(parts, "medium tattoo design, balanced composition")
	case SizeLarge:
		parts = append(parts, "large tattoo design, expansive composition")
	}

	if len(req.BodyParts) > 0 {
		parts = append(parts, fmt.Sprintf("suitable for %s placement", strings.ToLower(req.BodyParts[0])))
	}

	if mode == ModeImageToImage {
		parts = append(parts,
			"convert the reference photo into a tattoo design",
			"preserve the subject's likeness and defining features",
			"line-art conversion, tattoo stencil rendering")
	}

	parts = append(parts,
		"clean line art",
		"professional tattoo design",
		"high quality",
		"detailed",
		"tattoo stencil style",
		"suitable for tattooing")

	negative = NegativePromptTextToImage
	if mode == ModeImageToImage {
		negative = NegativePromptImageToImage
	}
	return strings.Join(parts, ", "), negative
}
