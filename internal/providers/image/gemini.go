package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiModels is the slice of the genai client this adapter depends on;
// tests substitute a stub.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions configures the Gemini adapter.
type GeminiOptions struct {
	APIKey string
	Model  string
	// Models overrides the genai backend; tests inject a stub here.
	Models geminiModels
}

// GeminiProvider generates designs through the Gemini API. It is the only
// adapter that accepts a reference image, which also makes it the seed
// channel for all-styles regeneration.
type GeminiProvider struct {
	apiKey string
	model  string
	models geminiModels
}

func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash-preview-image-generation"
	}
	p := &GeminiProvider{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  model,
		models: opts.Models,
	}
	if p.models == nil && p.apiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		p.models = client.Models
	}
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Configured() bool { return p.models != nil }

func (p *GeminiProvider) SupportsMode(Mode) bool { return true }

func (p *GeminiProvider) Generate(ctx context.Context, in GenerateInput) (*Image, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), KindNotConfigured, "api key missing")
	}

	prompt := in.Prompt
	if in.NegativePrompt != "" {
		// Gemini has no negative-prompt parameter; fold it into the prompt.
		prompt = prompt + ". Avoid: " + in.NegativePrompt + "."
	}
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if in.Mode == ModeImageToImage {
		if in.Reference == nil {
			return nil, newProviderError(p.Name(), KindInvalidResponse, "image-to-image requested without reference image")
		}
		mime := in.Reference.MIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(in.Reference.Data, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	// Higher transform strength means stay closer to the reference, so the
	// sampling temperature moves the opposite way.
	temperature := float32(0.9)
	if in.Mode == ModeImageToImage {
		temperature = float32(1.0 - 0.6*in.TransformStrength)
	}
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, p.translateError(err)
	}
	return p.extractImage(resp)
}

func (p *GeminiProvider) extractImage(resp *genai.GenerateContentResponse) (*Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "empty response")
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, newProviderError(p.Name(), KindUnknown, "generation blocked by safety filter")
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "response carries no content (finish reason %s)", candidate.FinishReason)
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &Image{
			Base64: base64.StdEncoding.EncodeToString(part.InlineData.Data),
			MIME:   mime,
			Model:  "gemini/" + p.model,
		}, nil
	}
	return nil, newProviderError(p.Name(), KindInvalidResponse, "response contains no inline image part")
}

func (p *GeminiProvider) translateError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission") || strings.Contains(msg, "unauthorized"):
		return newProviderError(p.Name(), KindAuth, "authentication failed: %v", err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "429"):
		return newProviderError(p.Name(), KindQuota, "quota exceeded: %v", err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return newProviderError(p.Name(), KindModelUnavailable, "model unavailable: %v", err)
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return newProviderError(p.Name(), KindTimeout, "request timed out: %v", err)
	default:
		return newProviderError(p.Name(), KindUnknown, "%v", err)
	}
}
