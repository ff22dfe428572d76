package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a provider should produce the design.
type Mode string

const (
	ModeTextToImage  Mode = "text_to_image"
	ModeImageToImage Mode = "image_to_image"
)

// ColorPreference constrains the palette of the generated design.
type ColorPreference string

const (
	ColorUnspecified   ColorPreference = ""
	ColorFull          ColorPreference = "color"
	ColorBlackAndWhite ColorPreference = "bw"
)

// SizePreference hints at the intended physical scale of the tattoo.
type SizePreference string

const (
	SizeUnspecified SizePreference = ""
	SizeSmall       SizePreference = "small"
	SizeMedium      SizePreference = "medium"
	SizeLarge       SizePreference = "large"
)

// ReferenceImage is an optional conditioning input for image-to-image mode.
type ReferenceImage struct {
	Data []byte
	MIME string
}

// DecodeReference parses a base64 reference image payload. A data-URL prefix
// is tolerated even though the API contract asks for bare base64.
func DecodeReference(encoded, mime string) (*ReferenceImage, error) {
	encoded = strings.TrimSpace(encoded)
	if idx := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && idx > 0 {
		if mime == "" {
			mime = encoded[len("data:"):idx]
		}
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("reference image is empty")
	}
	if mime == "" {
		mime = "image/png"
	}
	return &ReferenceImage{Data: data, MIME: mime}, nil
}

// DesignRequest is the normalized request passed to the pipeline. It is
// built per call and never persisted as its own entity.
type DesignRequest struct {
	SubjectMatter     string
	Styles            []string
	ColorPreference   ColorPreference
	SizePreference    SizePreference
	BodyParts         []string
	Reference         *ReferenceImage
	PreferredProvider string
	GenerateAllStyles bool
}

// ErrInvalidRequest reports a request rejected before any provider runs.
var ErrInvalidRequest = errors.New("image: invalid design request")

// Normalize trims free-form fields and drops empty entries. The first
// surviving style is the primary style for prompt construction.
func (r *DesignRequest) Normalize() {
	r.SubjectMatter = strings.TrimSpace(r.SubjectMatter)
	styles := r.Styles[:0]
	for _, s := range r.Styles {
		if s = strings.TrimSpace(s); s != "" {
			styles = append(styles, s)
		}
	}
	r.Styles = styles
	parts := r.BodyParts[:0]
	for _, p := range r.BodyParts {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	r.BodyParts = parts
	r.PreferredProvider = strings.ToLower(strings.TrimSpace(r.PreferredProvider))
	if r.Reference != nil && len(r.Reference.Data) == 0 {
		r.Reference = nil
	}
	if r.Reference != nil {
		// All-styles regeneration only applies to pure text prompts.
		r.GenerateAllStyles = false
	}
}

// Validate enforces the request invariants shared by every provider.
func (r *DesignRequest) Validate() error {
	if len(r.Styles) == 0 {
		return fmt.Errorf("%w: at least one style is required", ErrInvalidRequest)
	}
	if r.SubjectMatter == "" && r.Reference == nil {
		return fmt.Errorf("%w: subject matter or a reference image is required", ErrInvalidRequest)
	}
	return nil
}

// Mode reports the generation mode implied by the request.
func (r *DesignRequest) Mode() Mode {
	if r.Reference != nil {
		return ModeImageToImage
	}
	return ModeTextToImage
}

// GenerateInput is what an individual provider attempt receives: the built
// prompt pair plus whatever conditioning the mode requires.
type GenerateInput struct {
	Prompt         string
	NegativePrompt string
	Mode           Mode
	Reference      *ReferenceImage

	// TransformStrength biases image-to-image generation between faithful
	// likeness (high) and aggressive stylization (low). Providers interpret
	// the [0,1] range differently, so it stays an explicit field and each
	// adapter maps it to its own vendor parameter.
	TransformStrength float64
}

// Image is the normalized result of a successful provider attempt.
type Image struct {
	Base64 string
	MIME   string
	Model  string
}

// Provider is the capability implemented by every image vendor adapter.
type Provider interface {
	Name() string
	// Configured reports whether the adapter's credentials were present at
	// process start. Unconfigured providers are skipped, never failed.
	Configured() bool
	SupportsMode(Mode) bool
	Generate(ctx context.Context, in GenerateInput) (*Image, error)
}

// ErrorKind classifies provider failures for user-facing messaging.
type ErrorKind string

const (
	KindNotConfigured    ErrorKind = "not_configured"
	KindAuth             ErrorKind = "auth"
	KindQuota            ErrorKind = "quota_exceeded"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindInvalidResponse  ErrorKind = "invalid_response"
	KindTimeout          ErrorKind = "timeout"
	KindUnknown          ErrorKind = "unknown"
)

// ProviderError is the only error type adapters let escape their boundary.
// Raw vendor errors are wrapped, never rethrown.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(provider string, kind ErrorKind, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the taxonomy kind from an adapter error.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
