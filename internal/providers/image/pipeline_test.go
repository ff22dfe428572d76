package image

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	name       string
	configured bool
	modes      map[Mode]bool
	img        *Image
	err        error
	calls      int
	lastInput  GenerateInput
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return s.configured }

func (s *stubProvider) SupportsMode(mode Mode) bool {
	if s.modes == nil {
		return mode == ModeTextToImage
	}
	return s.modes[mode]
}

func (s *stubProvider) Generate(_ context.Context, in GenerateInput) (*Image, error) {
	s.calls++
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	img := *s.img
	return &img, nil
}

func testLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func textRequest() DesignRequest {
	return DesignRequest{SubjectMatter: "a small fox", Styles: []string{"Fine Line"}}
}

func TestPipelineFallbackOrder(t *testing.T) {
	failing := &stubProvider{name: "a", configured: true,
		err: newProviderError("a", KindUnknown, "vendor exploded")}
	skipped := &stubProvider{name: "b", configured: false}
	winning := &stubProvider{name: "c", configured: true, img: &Image{Base64: "aW1n", MIME: "image/png", Model: "c/model"}}

	p := NewPipeline(testLogger(), failing, skipped, winning)
	out, err := p.Generate(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Succeeded() || out.Provider != "c" {
		t.Fatalf("expected provider c to win, got %+v", out)
	}
	if skipped.calls != 0 {
		t.Fatalf("unconfigured provider must not be invoked")
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "vendor exploded") {
		t.Fatalf("aggregate errors = %v, want only a's failure", out.Errors)
	}
	for _, msg := range out.Errors {
		if strings.Contains(msg, "b") && strings.Contains(msg, "not configured") {
			t.Fatalf("skipped provider leaked into errors: %v", out.Errors)
		}
	}
}

func TestPipelinePreferredProviderFirst(t *testing.T) {
	a := &stubProvider{name: "a", configured: true, img: &Image{Base64: "YQ==", MIME: "image/png"}}
	b := &stubProvider{name: "b", configured: true, img: &Image{Base64: "Yg==", MIME: "image/png"}}
	c := &stubProvider{name: "c", configured: true, img: &Image{Base64: "Yw==", MIME: "image/png"}}

	req := textRequest()
	req.PreferredProvider = "c"
	out, err := NewPipeline(testLogger(), a, b, c).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Provider != "c" {
		t.Fatalf("provider = %q, want c", out.Provider)
	}
	if a.calls != 0 || b.calls != 0 {
		t.Fatalf("a/b should never run when preferred c succeeds (a=%d b=%d)", a.calls, b.calls)
	}
}

func TestPipelineUnknownPreferredProviderIsNoop(t *testing.T) {
	a := &stubProvider{name: "a", configured: true, img: &Image{Base64: "YQ==", MIME: "image/png"}}
	req := textRequest()
	req.PreferredProvider = "nonexistent"
	out, err := NewPipeline(testLogger(), a).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Provider != "a" {
		t.Fatalf("provider = %q, want a", out.Provider)
	}
}

func TestPipelineAllSkippedYieldsSetupGuidance(t *testing.T) {
	out, err := NewPipeline(testLogger(),
		&stubProvider{name: "a"},
		&stubProvider{name: "b"},
	).Generate(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Succeeded() {
		t.Fatalf("no provider should succeed")
	}
	if out.AnyConfigured {
		t.Fatalf("AnyConfigured should be false")
	}
	if out.SetupInstructions == "" {
		t.Fatalf("expected setup instructions for unconfigured deployment")
	}
	if out.Prompt == "" {
		t.Fatalf("exhausted outcome must still carry the prompt")
	}
	if len(out.Errors) != 0 {
		t.Fatalf("skips are not errors, got %v", out.Errors)
	}
}

func TestPipelineValidation(t *testing.T) {
	p := NewPipeline(testLogger(), &stubProvider{name: "a", configured: true, img: &Image{Base64: "YQ=="}})

	_, err := p.Generate(context.Background(), DesignRequest{SubjectMatter: "fox"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty styles should be invalid, got %v", err)
	}

	_, err = p.Generate(context.Background(), DesignRequest{Styles: []string{"Realism"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing subject and reference should be invalid, got %v", err)
	}

	// A reference image alone satisfies the subject requirement.
	req := DesignRequest{
		Styles:    []string{"Realism"},
		Reference: &ReferenceImage{Data: []byte{1, 2}, MIME: "image/png"},
	}
	if _, err := p.Generate(context.Background(), req); errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("reference-only request should be valid, got %v", err)
	}
}

func TestPipelineImageToImageRouting(t *testing.T) {
	textOnly := &stubProvider{name: "replicate", configured: true, img: &Image{Base64: "YQ=="}}
	both := &stubProvider{name: "gemini", configured: true,
		modes: map[Mode]bool{ModeTextToImage: true, ModeImageToImage: true},
		img:   &Image{Base64: "Yg==", MIME: "image/png"}}

	req := DesignRequest{
		Styles:    []string{"Fine Line"},
		Reference: &ReferenceImage{Data: []byte{1}, MIME: "image/jpeg"},
	}
	out, err := NewPipeline(testLogger(), textOnly, both).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Provider != "gemini" {
		t.Fatalf("provider = %q, want gemini (only i2i-capable)", out.Provider)
	}
	if textOnly.calls != 0 {
		t.Fatalf("text-only provider must not receive image-to-image input")
	}
	if both.lastInput.Mode != ModeImageToImage {
		t.Fatalf("mode = %q, want image_to_image", both.lastInput.Mode)
	}
	if both.lastInput.TransformStrength <= 0 || both.lastInput.TransformStrength > 1 {
		t.Fatalf("transform strength out of range: %v", both.lastInput.TransformStrength)
	}
}

func TestPipelineAllStylesBestEffort(t *testing.T) {
	// Primary succeeds via the text provider; style variants go through the
	// i2i provider, which fails for every style. The request must still
	// succeed with the primary image.
	primary := &stubProvider{name: "replicate", configured: true, img: &Image{Base64: "aW1n", MIME: "image/png"}}
	i2i := &stubProvider{name: "gemini", configured: true,
		modes: map[Mode]bool{ModeTextToImage: true, ModeImageToImage: true},
		err:   newProviderError("gemini", KindQuota, "quota exceeded")}

	req := textRequest()
	req.PreferredProvider = "replicate"
	req.GenerateAllStyles = true
	out, err := NewPipeline(testLogger(), primary, i2i).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Succeeded() {
		t.Fatalf("primary success must survive style-variant failures")
	}
	if !out.AllStyles {
		t.Fatalf("AllStyles flag not set")
	}
	if len(out.StyleImages) != 0 {
		t.Fatalf("expected zero style variants, got %d", len(out.StyleImages))
	}
	// One i2i attempt per non-requested known style.
	if i2i.calls != len(KnownStyles)-1 {
		t.Fatalf("i2i attempts = %d, want %d", i2i.calls, len(KnownStyles)-1)
	}
}

func TestPipelineAllStylesCollectsVariants(t *testing.T) {
	primary := &stubProvider{name: "replicate", configured: true, img: &Image{Base64: "aW1n", MIME: "image/png"}}
	i2i := &stubProvider{name: "gemini", configured: true,
		modes: map[Mode]bool{ModeTextToImage: true, ModeImageToImage: true},
		img:   &Image{Base64: "dmFyaWFudA==", MIME: "image/png"}}

	req := textRequest()
	req.PreferredProvider = "replicate"
	req.GenerateAllStyles = true
	out, err := NewPipeline(testLogger(), primary, i2i).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.StyleImages) != len(KnownStyles)-1 {
		t.Fatalf("style variants = %d, want %d", len(out.StyleImages), len(KnownStyles)-1)
	}
	for _, variant := range out.StyleImages {
		if strings.EqualFold(variant.Style, "Fine Line") {
			t.Fatalf("requested style must not be regenerated")
		}
	}
}

func TestPipelineReferenceDisablesAllStyles(t *testing.T) {
	i2i := &stubProvider{name: "gemini", configured: true,
		modes: map[Mode]bool{ModeTextToImage: true, ModeImageToImage: true},
		img:   &Image{Base64: "aW1n", MIME: "image/png"}}

	req := DesignRequest{
		Styles:            []string{"Realism"},
		Reference:         &ReferenceImage{Data: []byte{1}, MIME: "image/png"},
		GenerateAllStyles: true,
	}
	out, err := NewPipeline(testLogger(), i2i).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.AllStyles || len(out.StyleImages) != 0 {
		t.Fatalf("all-styles must be ignored when a reference image is present")
	}
	if i2i.calls != 1 {
		t.Fatalf("calls = %d, want 1", i2i.calls)
	}
}
