package image

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rs/zerolog"
)

// StyleImage is a best-effort extra rendering produced by all-styles mode.
type StyleImage struct {
	Style  string
	Base64 string
	MIME   string
}

// Outcome is the pipeline's result. A fully exhausted pipeline is not an
// error: the caller still gets the constructed prompt plus setup guidance.
type Outcome struct {
	Image          *Image
	Provider       string
	Prompt         string
	NegativePrompt string

	StyleImages []StyleImage
	AllStyles   bool

	// Errors holds non-skip failure reasons from attempted providers.
	// Skipped (unconfigured) providers never appear here.
	Errors            []string
	AnyConfigured     bool
	SetupInstructions string
}

// Succeeded reports whether any provider produced an image.
func (o *Outcome) Succeeded() bool { return o.Image != nil }

// Pipeline attempts providers strictly in sequence and returns the first
// success. Providers are never raced in parallel: a single request must not
// spend credits on more than one paid vendor at a time.
type Pipeline struct {
	providers         []Provider
	logger            zerolog.Logger
	transformStrength float64
}

// DefaultTransformStrength biases image-to-image conversion toward keeping
// the subject's likeness while still committing to the stencil look.
const DefaultTransformStrength = 0.65

func NewPipeline(logger zerolog.Logger, providers ...Provider) *Pipeline {
	return &Pipeline{
		providers:         providers,
		logger:            logger,
		transformStrength: DefaultTransformStrength,
	}
}

// WithTransformStrength overrides the image-to-image strength for deployments
// that tune it.
func (p *Pipeline) WithTransformStrength(strength float64) *Pipeline {
	if strength > 0 && strength <= 1 {
		p.transformStrength = strength
	}
	return p
}

// Generate validates the request, walks the ordered provider list, and
// returns either the first successful image or an exhausted outcome. Only an
// invalid request produces a non-nil error.
func (p *Pipeline) Generate(ctx context.Context, req DesignRequest) (*Outcome, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mode := req.Mode()
	prompt, negative := BuildPrompt(req, mode)
	outcome := &Outcome{Prompt: prompt, NegativePrompt: negative}

	input := GenerateInput{
		Prompt:            prompt,
		NegativePrompt:    negative,
		Mode:              mode,
		Reference:         req.Reference,
		TransformStrength: p.transformStrength,
	}

	for _, provider := range p.order(req.PreferredProvider) {
		if !provider.SupportsMode(mode) {
			p.logger.Debug().Str("provider", provider.Name()).Msg("pipeline: provider skipped, mode unsupported")
			continue
		}
		if !provider.Configured() {
			p.logger.Debug().Str("provider", provider.Name()).Msg("pipeline: provider skipped, not configured")
			continue
		}
		outcome.AnyConfigured = true

		img, err := provider.Generate(ctx, input)
		if err != nil {
			if KindOf(err) == KindNotConfigured {
				p.logger.Debug().Str("provider", provider.Name()).Msg("pipeline: provider skipped, not configured")
				continue
			}
			p.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("pipeline: provider attempt failed")
			outcome.Errors = append(outcome.Errors, err.Error())
			if ctx.Err() != nil {
				// Caller gone or deadline hit: stop burning vendor calls.
				break
			}
			continue
		}
		img.Base64 = cleanBase64(img.Base64)
		if img.Base64 == "" {
			outcome.Errors = append(outcome.Errors, provider.Name()+": received empty image data")
			continue
		}

		p.logger.Info().Str("provider", provider.Name()).Str("model", img.Model).Msg("pipeline: image generated")
		outcome.Image = img
		outcome.Provider = provider.Name()

		if req.GenerateAllStyles {
			outcome.AllStyles = true
			outcome.StyleImages = p.allStylesPass(ctx, req, img)
		}
		return outcome, nil
	}

	if !outcome.AnyConfigured {
		outcome.SetupInstructions = setupInstructions
	}
	return outcome, nil
}

// allStylesPass regenerates the winning composition in every other known
// style, seeding each attempt with the primary image. Failures here are
// logged and skipped individually: the primary image is already a success and
// must never be retracted by a decoration step.
func (p *Pipeline) allStylesPass(ctx context.Context, req DesignRequest, seed *Image) []StyleImage {
	data, err := base64.StdEncoding.DecodeString(seed.Base64)
	if err != nil {
		p.logger.Warn().Err(err).Msg("pipeline: all-styles seed image undecodable")
		return nil
	}
	reference := &ReferenceImage{Data: data, MIME: seed.MIME}

	var extras []StyleImage
	for _, style := range KnownStyles {
		if styleRequested(req.Styles, style) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		sub := DesignRequest{
			SubjectMatter:   req.SubjectMatter,
			Styles:          []string{style},
			ColorPreference: req.ColorPreference,
			SizePreference:  req.SizePreference,
			BodyParts:       req.BodyParts,
			Reference:       reference,
		}
		prompt, negative := BuildPrompt(sub, ModeImageToImage)
		img, err := p.firstImageToImage(ctx, GenerateInput{
			Prompt:            prompt,
			NegativePrompt:    negative,
			Mode:              ModeImageToImage,
			Reference:         reference,
			TransformStrength: p.transformStrength,
		})
		if err != nil {
			p.logger.Debug().Err(err).Str("style", style).Msg("pipeline: all-styles variant failed")
			continue
		}
		extras = append(extras, StyleImage{Style: style, Base64: img.Base64, MIME: img.MIME})
	}
	return extras
}

func (p *Pipeline) firstImageToImage(ctx context.Context, input GenerateInput) (*Image, error) {
	var lastErr error
	for _, provider := range p.providers {
		if !provider.Configured() || !provider.SupportsMode(ModeImageToImage) {
			continue
		}
		img, err := provider.Generate(ctx, input)
		if err != nil {
			lastErr = err
			continue
		}
		img.Base64 = cleanBase64(img.Base64)
		if img.Base64 != "" {
			return img, nil
		}
	}
	if lastErr == nil {
		lastErr = newProviderError("pipeline", KindNotConfigured, "no image-to-image capable provider configured")
	}
	return nil, lastErr
}

// order returns the provider sequence with the preferred provider, when it
// names a known one, moved to the front. Unknown names are a no-op.
func (p *Pipeline) order(preferred string) []Provider {
	if preferred == "" {
		return p.providers
	}
	ordered := make([]Provider, 0, len(p.providers))
	var match Provider
	for _, provider := range p.providers {
		if match == nil && provider.Name() == preferred {
			match = provider
			continue
		}
		ordered = append(ordered, provider)
	}
	if match == nil {
		return p.providers
	}
	return append([]Provider{match}, ordered...)
}

func styleRequested(requested []string, style string) bool {
	for _, r := range requested {
		if strings.EqualFold(strings.TrimSpace(r), style) {
			return true
		}
	}
	return false
}

const setupInstructions = `No image generation service is configured.

Quick setup (Replicate, recommended):
1. Create an API token at https://replicate.com/account/api-tokens
2. Add REPLICATE_API_TOKEN=r8_your_token_here to the environment
3. Restart the server and generate again

Alternatives:
- Vertex AI Imagen: set GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS (service-account JSON)
- Gemini: set GEMINI_API_KEY
- Hugging Face: set HUGGINGFACE_API_KEY`
